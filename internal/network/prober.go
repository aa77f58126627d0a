package network

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-stats-cache/internal/scheduler"
)

// Prober feeds a Monitor from a periodic HTTP health check
type Prober struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	monitor    *Monitor
	logger     *zap.Logger
	scheduler  *scheduler.Scheduler
}

// NewProber creates a prober checking url every interval
func NewProber(url string, interval, timeout time.Duration, httpClient *http.Client, monitor *Monitor, clk clock.Clock, logger *zap.Logger) *Prober {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clk == nil {
		clk = clock.New()
	}
	p := &Prober{
		url:        url,
		timeout:    timeout,
		httpClient: httpClient,
		monitor:    monitor,
		logger:     logger,
	}
	p.scheduler = scheduler.New(interval, p.ProbeOnce, scheduler.WithClock(clk))
	return p
}

// Start probes once and then every interval
func (p *Prober) Start() {
	p.ProbeOnce()
	p.scheduler.Start()
}

// Stop stops probing
func (p *Prober) Stop() {
	p.scheduler.Stop()
}

// ProbeOnce performs a single health check and signals the result
func (p *Prober) ProbeOnce() {
	p.monitor.Signal(p.check())
}

func (p *Prober) check() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Error("Failed to build probe request", zap.String("url", p.url), zap.Error(err))
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("Probe failed", zap.String("url", p.url), zap.Error(err))
		return false
	}
	_ = resp.Body.Close()

	// Any server answer below 500 means the network path is up
	return resp.StatusCode < http.StatusInternalServerError
}
