//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/config"
	"github.com/eliteGoblin/focusd/logmonitor/internal/daemon"
	"github.com/eliteGoblin/focusd/logmonitor/internal/infra"
	"github.com/eliteGoblin/focusd/logmonitor/internal/tail"
	"github.com/eliteGoblin/focusd/logmonitor/internal/usecase"
	"github.com/eliteGoblin/focusd/logmonitor/test/fixtures"
)

const pollInterval = 50 * time.Millisecond

// sendRecorder returns a send script body appending its arguments to record.
func sendRecorder(record string) string {
	return `printf '%s|%s|%s\n' "$1" "$2" "$3" >> ` + record
}

func readRecord(path string) func() []string {
	return func() []string {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return strings.Fields(strings.ReplaceAll(string(data), " ", "_"))
	}
}

func appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	Expect(err).NotTo(HaveOccurred())
	_, err = f.WriteString(line)
	Expect(err).NotTo(HaveOccurred())
	Expect(f.Close()).To(Succeed())
}

// startMonitor wires the daemon the way cmd/logmonitor does and runs it
// until the returned stop function is called.
func startMonitor(configDir string) (stop func()) {
	cfg, err := config.NewLoader(infra.NewFileSystemManager()).Load(configDir)
	Expect(err).NotTo(HaveOccurred())

	logger := zap.NewNop()
	clock := infra.NewSystemClock()
	runner := infra.NewProcessRunner(5*time.Second, logger)
	dispatcher := usecase.NewDispatcher(cfg.Targets, runner, clock, logger)
	matcher := usecase.NewMatcher(cfg.Notifications, runner, dispatcher, usecase.DefaultOutputLimit, logger)
	monitor := daemon.NewMonitor(daemon.MonitorConfig{
		PollInterval: pollInterval,
		Tracker:      tail.TrackerConfig{StatusReadInterval: 200 * time.Millisecond},
	}, cfg.Files, matcher, runner, clock, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	// Let the first tick open every file at its end.
	time.Sleep(3 * pollInterval)

	return func() {
		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	}
}

var _ = Describe("Monitor", func() {
	var (
		tmpDir  string
		appLog  string
		record  string
		confDir *fixtures.ConfigDir
		stop    func()
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "logmonitor-integration-*")
		Expect(err).NotTo(HaveOccurred())

		appLog = filepath.Join(tmpDir, "app.log")
		record = filepath.Join(tmpDir, "sent")
		appendLine(appLog, "")

		confDir, err = fixtures.NewConfigDir(filepath.Join(tmpDir, "etc"))
		Expect(err).NotTo(HaveOccurred())
		stop = func() {}
	})

	AfterEach(func() {
		stop()
		os.RemoveAll(tmpDir)
	})

	Describe("disk-full notification", func() {
		BeforeEach(func() {
			_, err := confDir.AddNotification("disk-full", fixtures.NotificationSpec{
				Filter:  `case "$1" in *ENOSPC*) exit 0;; esac; exit 1`,
				Title:   "Disk full",
				Desc:    "check disk",
				Level:   "ERROR",
				Sources: []string{"log:" + appLog},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = confDir.AddTarget("ops", sendRecorder(record), 60)
			Expect(err).NotTo(HaveOccurred())
		})

		Context("when a matching line is appended", func() {
			It("should invoke send once with the resolved fields", func() {
				stop = startMonitor(confDir.Root)

				appendLine(appLog, "2024 ENOSPC writing block\n")

				Eventually(readRecord(record), 2*time.Second).Should(Equal([]string{"Disk_full|check_disk|ERROR"}))
			})

			It("should not resend within the debounce window", func() {
				stop = startMonitor(confDir.Root)

				appendLine(appLog, "2024 ENOSPC writing block\n")
				Eventually(readRecord(record), 2*time.Second).Should(HaveLen(1))

				appendLine(appLog, "2024 ENOSPC writing block again\n")
				Consistently(readRecord(record), 10*pollInterval).Should(HaveLen(1))
			})
		})

		Context("when a non-matching line is appended", func() {
			It("should not invoke send", func() {
				stop = startMonitor(confDir.Root)

				appendLine(appLog, "all quiet\n")

				Consistently(readRecord(record), 10*pollInterval).Should(BeEmpty())
			})
		})

		Context("when content existed before startup", func() {
			It("should only consider lines appended afterwards", func() {
				appendLine(appLog, "old ENOSPC line\n")
				stop = startMonitor(confDir.Root)

				Consistently(readRecord(record), 10*pollInterval).Should(BeEmpty())
			})
		})

		Context("when the log file is rotated", func() {
			It("should follow the new file", func() {
				stop = startMonitor(confDir.Root)

				Expect(os.Rename(appLog, appLog+".1")).To(Succeed())
				appendLine(appLog, "")
				time.Sleep(3 * pollInterval)

				appendLine(appLog, "ENOSPC after rotation\n")
				Eventually(readRecord(record), 2*time.Second).Should(HaveLen(1))
			})
		})
	})

	Describe("field resolution", func() {
		It("should use the EXECERROR sentinel for a failing title executable", func() {
			_, err := confDir.AddNotification("oom", fixtures.NotificationSpec{
				Filter:  `exit 0`,
				Title:   "#!/bin/sh\nexit 2",
				Desc:    "#!/bin/sh\necho \"saw: $1\"",
				Level:   "#!/bin/sh\necho WARNING",
				Sources: []string{appLog},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = confDir.AddTarget("ops", sendRecorder(record), 0)
			Expect(err).NotTo(HaveOccurred())
			stop = startMonitor(confDir.Root)

			appendLine(appLog, "oom-killer\n")

			Eventually(readRecord(record), 2*time.Second).Should(Equal([]string{"EXECERROR|saw:_oom-killer|WARNING"}))
		})
	})

	Describe("status files", func() {
		It("should re-read the whole file when it changes", func() {
			state := filepath.Join(tmpDir, "raid")
			appendLine(state, "clean\n")

			_, err := confDir.AddNotification("raid", fixtures.NotificationSpec{
				Filter:  `[ "$1" = degraded ]`,
				Title:   "RAID degraded",
				Desc:    "replace disk",
				Level:   "WARNING",
				Sources: []string{"status:" + state},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = confDir.AddTarget("ops", sendRecorder(record), 0)
			Expect(err).NotTo(HaveOccurred())
			stop = startMonitor(confDir.Root)

			Consistently(readRecord(record), 5*pollInterval).Should(BeEmpty())

			Expect(os.WriteFile(state, []byte("degraded\n"), 0644)).To(Succeed())
			Eventually(readRecord(record), 2*time.Second).Should(Equal([]string{"RAID_degraded|replace_disk|WARNING"}))
		})
	})

	Describe("multiple targets", func() {
		It("should debounce each target independently", func() {
			ops := filepath.Join(tmpDir, "ops")
			pager := filepath.Join(tmpDir, "pager")
			_, err := confDir.AddNotification("any", fixtures.NotificationSpec{
				Filter:  `exit 0`,
				Title:   "t",
				Desc:    "d",
				Level:   "INFO",
				Sources: []string{appLog},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = confDir.AddTarget("ops", sendRecorder(ops), 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = confDir.AddTarget("pager", sendRecorder(pager), 1)
			Expect(err).NotTo(HaveOccurred())
			stop = startMonitor(confDir.Root)

			appendLine(appLog, "first\n")
			Eventually(readRecord(pager), 2*time.Second).Should(HaveLen(1))

			time.Sleep(1100 * time.Millisecond)
			appendLine(appLog, "second\n")

			Eventually(readRecord(pager), 2*time.Second).Should(HaveLen(2))
			Consistently(readRecord(ops), 5*pollInterval).Should(HaveLen(1))
		})
	})
})
