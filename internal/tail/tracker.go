package tail

import (
	"errors"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// ReadBufferSize is the most bytes read from a file in one read call.
const ReadBufferSize = 8192

// DefaultStatusReadInterval throttles re-reads of status files.
const DefaultStatusReadInterval = 5 * time.Second

// State is the lifecycle state of a tracked file handle.
type State int

const (
	StateUnopened State = iota
	StateOpen
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// snapshot is the metadata used to detect status file changes.
type snapshot struct {
	dev   uint64
	ino   uint64
	size  int64
	mtime time.Time
}

func snapshotOf(info os.FileInfo) (snapshot, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return snapshot{}, false
	}
	return snapshot{
		dev:   uint64(st.Dev),
		ino:   uint64(st.Ino),
		size:  info.Size(),
		mtime: info.ModTime(),
	}, true
}

// TrackerConfig holds per-file tracking parameters.
type TrackerConfig struct {
	StatusReadInterval time.Duration
}

// DefaultTrackerConfig returns the default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{StatusReadInterval: DefaultStatusReadInterval}
}

// Tracker owns the descriptor lifecycle of one monitored file.
// Polls must not run concurrently.
type Tracker struct {
	file   domain.MonitoredFile
	config TrackerConfig
	clock  domain.Clock
	logger *zap.Logger

	fd       int
	state    State
	lastRead time.Time
	last     snapshot
	hasLast  bool

	lines *LineBuffer
	buf   []byte
}

// NewTracker creates an unopened tracker for file.
func NewTracker(file domain.MonitoredFile, config TrackerConfig, clock domain.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{
		file:   file,
		config: config,
		clock:  clock,
		logger: logger.With(zap.String("file", file.Path), zap.String("kind", string(file.Kind))),
		fd:     -1,
		state:  StateUnopened,
		lines:  NewLineBuffer(),
		buf:    make([]byte, ReadBufferSize),
	}
}

// File returns the tracked file.
func (t *Tracker) File() domain.MonitoredFile {
	return t.file
}

// State returns the current handle state.
func (t *Tracker) State() State {
	return t.state
}

// Open performs the startup open. Log files are positioned at their end so
// only content appended from now on is read.
func (t *Tracker) Open() {
	t.reopen(false)
}

// Poll runs one tick for the file and passes every completed line to emit.
// It returns the number of read calls that returned data.
func (t *Tracker) Poll(emit func(line string)) int {
	if t.file.IsStatus() && !t.lastRead.IsZero() &&
		t.clock.Now().Sub(t.lastRead) < t.config.StatusReadInterval {
		return 0
	}

	info, statErr := os.Stat(t.file.Path)
	if t.needsReopen(info, statErr) {
		t.reopen(true)
	}
	if t.state != StateOpen {
		return 0
	}

	if t.file.IsStatus() {
		if statErr == nil {
			if snap, ok := snapshotOf(info); ok {
				if t.hasLast && snap == t.last {
					t.lastRead = t.clock.Now()
					return 0
				}
				t.last, t.hasLast = snap, true
			}
		}
		// Status files are always read from the beginning.
		if _, err := unix.Seek(t.fd, 0, unix.SEEK_SET); err != nil {
			t.logger.Error("seek failed", zap.Error(err))
		}
		t.lines.Reset()
	}

	reads := t.readAll(emit)
	t.lastRead = t.clock.Now()
	return reads
}

// needsReopen decides whether the path now refers to a different file than
// the open handle, or there is no handle yet.
func (t *Tracker) needsReopen(info os.FileInfo, statErr error) bool {
	if t.fd < 0 {
		return true
	}
	if statErr != nil {
		return true
	}

	var st unix.Stat_t
	if err := unix.Fstat(t.fd, &st); err != nil {
		return true
	}
	snap, ok := snapshotOf(info)
	if !ok {
		return false
	}
	return uint64(st.Dev) != snap.dev || uint64(st.Ino) != snap.ino
}

func (t *Tracker) reopen(replacing bool) {
	hadHandle := t.fd >= 0
	t.closeFD()

	fd, err := unix.Open(t.file.Path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if hadHandle {
			t.logger.Debug("file has become inaccessible", zap.Error(err))
		} else if t.state != StateUnavailable {
			t.logger.Debug("file unavailable", zap.Error(err))
		}
		t.state = StateUnavailable
		return
	}

	if !t.file.IsStatus() {
		if _, err := unix.Seek(fd, 0, unix.SEEK_END); err != nil {
			t.logger.Error("seek to end failed", zap.Error(err))
		}
	}
	if replacing {
		if hadHandle {
			t.logger.Debug("file has been replaced; following end of new file")
		} else {
			t.logger.Debug("file has appeared; following end of new file")
		}
	}

	// A fragment from the previous file can never be completed.
	t.lines.Reset()
	t.hasLast = false
	t.fd = fd
	t.state = StateOpen
}

// readAll reads until no more data is available, restarting from offset 0
// when the file shrank below the current offset.
func (t *Tracker) readAll(emit func(line string)) int {
	reads := 0
	for {
		t.rewindIfTruncated()

		n, err := t.read()
		if err != nil {
			t.logger.Error("read error", zap.Error(err))
		}
		if n <= 0 {
			return reads
		}
		reads++

		lines, err := t.lines.Feed(t.buf[:n])
		if err != nil {
			t.logger.Error("discarding pending data", zap.Error(err), zap.Int("limit", MaxPendingSize))
			continue
		}
		for _, line := range lines {
			emit(line)
		}
	}
}

func (t *Tracker) rewindIfTruncated() {
	var st unix.Stat_t
	if err := unix.Fstat(t.fd, &st); err != nil {
		return
	}
	cur, err := unix.Seek(t.fd, 0, unix.SEEK_CUR)
	if err != nil {
		return
	}
	if st.Size < cur {
		t.logger.Debug("file truncated; reading from start", zap.Int64("offset", cur), zap.Int64("size", st.Size))
		if _, err := unix.Seek(t.fd, 0, unix.SEEK_SET); err != nil {
			t.logger.Error("seek failed", zap.Error(err))
		}
	}
}

func (t *Tracker) read() (int, error) {
	for {
		n, err := unix.Read(t.fd, t.buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		}
		return n, err
	}
}

// Close releases the file handle.
func (t *Tracker) Close() {
	t.closeFD()
	t.state = StateUnopened
}

func (t *Tracker) closeFD() {
	if t.fd >= 0 {
		_ = unix.Close(t.fd)
		t.fd = -1
	}
}
