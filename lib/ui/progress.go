package ui

import (
	"sync"
	"time"
)

// Progress periodically reports a status line until it is stopped
type Progress struct {
	interval time.Duration
	rep      Reporter
	status   func() string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// StartProgress reports status() every interval as an info message.
// A non-positive interval disables reporting, Stop is still safe to call.
func StartProgress(interval time.Duration, rep Reporter, status func() string) *Progress {
	p := &Progress{
		interval: interval,
		rep:      rep,
		status:   status,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if interval <= 0 || rep == nil {
		close(p.doneCh)
		return p
	}
	go p.run()
	return p
}

func (p *Progress) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.rep.Infof("%s", p.status())
		}
	}
}

// Stop ends the reporting and waits for the reporting goroutine to exit.
// It can be called multiple times.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
