// Package tail follows monitored files across rotation and truncation and
// turns the bytes read from them into complete lines.
package tail

import (
	"bytes"
	"errors"
)

// MaxPendingSize bounds the bytes kept for an unterminated line.
const MaxPendingSize = 500 * 1024

// ErrLineTooLong is returned when the pending partial line would exceed
// MaxPendingSize. The pending bytes are discarded.
var ErrLineTooLong = errors.New("line too long")

// LineBuffer reassembles arbitrary read chunks into complete lines.
// It is not safe for concurrent use.
type LineBuffer struct {
	pending []byte
	max     int
}

// NewLineBuffer returns a LineBuffer capped at MaxPendingSize.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{max: MaxPendingSize}
}

// Feed appends chunk and returns every line it completes, in order.
// Line endings ("\n" or "\r\n") are stripped and empty lines are dropped.
// The trailing unterminated fragment stays pending for the next call.
func (b *LineBuffer) Feed(chunk []byte) ([]string, error) {
	if len(b.pending)+len(chunk) > b.max {
		b.Reset()
		return nil, ErrLineTooLong
	}

	data := chunk
	if len(b.pending) > 0 {
		data = append(b.pending, chunk...)
	}

	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:i], []byte{'\r'})
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
		data = data[i+1:]
	}

	if len(data) == 0 {
		b.pending = b.pending[:0]
	} else {
		// Copy: data may alias the caller's read buffer.
		b.pending = append(b.pending[:0], data...)
	}
	return lines, nil
}

// Pending returns the number of buffered bytes awaiting a line terminator.
func (b *LineBuffer) Pending() int {
	return len(b.pending)
}

// Reset discards any pending fragment.
func (b *LineBuffer) Reset() {
	b.pending = nil
}
