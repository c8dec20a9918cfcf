// Package monitor periodically logs runtime statistics of the running
// server: registered clients, goroutines, and process memory and CPU.
package monitor

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// ClientCounter reports how many clients are currently registered.
type ClientCounter interface {
	Len() int
}

// Monitor samples server stats on a fixed interval.
type Monitor struct {
	interval time.Duration
	clients  ClientCounter
	log      *zerolog.Logger
	proc     *process.Process
	started  time.Time
}

// New builds a monitor. An interval of zero or less disables sampling.
func New(interval time.Duration, clients ClientCounter, logger *zerolog.Logger) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("process stats unavailable")
		proc = nil
	}
	return &Monitor{
		interval: interval,
		clients:  clients,
		log:      logger,
		proc:     proc,
		started:  time.Now(),
	}
}

// Run logs one stats line per interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.logStats()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) logStats() {
	ev := m.log.Info().
		Dur("uptime", time.Since(m.started).Round(time.Second)).
		Int("clients", m.clients.Len()).
		Int("goroutines", runtime.NumGoroutine())

	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil && memInfo != nil {
			ev = ev.Uint64("rss_bytes", memInfo.RSS)
		}
		if cpuPercent, err := m.proc.CPUPercent(); err == nil {
			ev = ev.Float64("cpu_percent", cpuPercent)
		}
	}

	ev.Msg("server stats")
}
