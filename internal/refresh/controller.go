package refresh

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// State of the pull gesture
type State string

const (
	StateIdle       State = "idle"
	StatePulling    State = "pulling"
	StateTriggered  State = "triggered"
	StateRefreshing State = "refreshing"
)

// Options shape the gesture
type Options struct {
	// MaxDistance caps the pulled distance
	MaxDistance float64
	// TriggerFraction of MaxDistance that arms the refresh
	TriggerFraction float64
	// Resistance is the exponent of the pull curve, 1 means no resistance
	Resistance float64
	// Throttle is the minimum interval between two refreshes
	Throttle time.Duration
	// MinVisible keeps the refreshing state up at least this long
	MinVisible time.Duration
}

// DefaultOptions returns the standard gesture options
func DefaultOptions() Options {
	return Options{
		MaxDistance:     180,
		TriggerFraction: 2.0 / 3.0,
		Resistance:      0.8,
		Throttle:        time.Second,
		MinVisible:      500 * time.Millisecond,
	}
}

// TriggerDistance is the pulled distance at which the refresh arms
func (o Options) TriggerDistance() float64 {
	return o.MaxDistance * o.TriggerFraction
}

// RefreshFunc performs the refresh
type RefreshFunc func(ctx context.Context) error

// Observer receives every state or progress change
type Observer func(state State, progress float64)

// Controller is the pull-to-refresh state machine, independent of rendering
type Controller struct {
	opts    Options
	refresh RefreshFunc
	clock   clock.Clock
	logger  *zap.Logger

	mu          sync.Mutex
	state       State
	pulled      float64
	lastRefresh time.Time
	observers   []Observer

	// pending holds transitions not yet delivered, draining marks the goroutine delivering them
	pending  []change
	draining bool
}

type change struct {
	state     State
	progress  float64
	observers []Observer
}

// NewController creates a controller running refresh on release. A nil clock uses the wall clock.
func NewController(opts Options, refresh RefreshFunc, clk clock.Clock, logger *zap.Logger) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		opts:    opts,
		refresh: refresh,
		clock:   clk,
		logger:  logger,
		state:   StateIdle,
	}
}

// Subscribe registers an observer
func (c *Controller) Subscribe(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns pulled distance over trigger distance, clamped to [0,1]
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

// Pulled returns the pulled distance after resistance
func (c *Controller) Pulled() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pulled
}

// DragStart begins a gesture when the content is scrolled to the top
func (c *Controller) DragStart(scrollTop float64) {
	c.mu.Lock()
	if c.state != StateIdle || scrollTop > 0 {
		c.mu.Unlock()
		return
	}
	c.state = StatePulling
	c.pulled = 0
	c.emitUnlock()
}

// DragMove updates the raw drag distance of the current gesture
func (c *Controller) DragMove(distance float64) {
	c.mu.Lock()
	if c.state != StatePulling && c.state != StateTriggered {
		c.mu.Unlock()
		return
	}

	c.pulled = c.resist(distance)
	if c.pulled >= c.opts.TriggerDistance() {
		c.state = StateTriggered
	} else {
		c.state = StatePulling
	}
	c.emitUnlock()
}

// Release ends the gesture. A triggered gesture runs the refresh and returns its error
// once the refreshing state has been visible for MinVisible.
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRefreshing:
		c.mu.Unlock()
		return nil
	case StateTriggered:
	default:
		c.reset()
		c.emitUnlock()
		return nil
	}

	now := c.clock.Now()
	if !c.lastRefresh.IsZero() && now.Sub(c.lastRefresh) < c.opts.Throttle {
		c.logger.Debug("Refresh throttled", zap.Duration("since_last", now.Sub(c.lastRefresh)))
		c.reset()
		c.emitUnlock()
		return nil
	}

	c.state = StateRefreshing
	c.lastRefresh = now
	c.emitUnlock()

	var err error
	if c.refresh != nil {
		err = c.refresh(ctx)
	}
	if err != nil {
		c.logger.Warn("Refresh failed", zap.Error(err))
	}

	if remaining := c.opts.MinVisible - c.clock.Since(now); remaining > 0 {
		timer := c.clock.Timer(remaining)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	c.mu.Lock()
	c.reset()
	c.emitUnlock()
	return err
}

func (c *Controller) reset() {
	c.state = StateIdle
	c.pulled = 0
}

// resist clamps distance and applies the resistance curve scaled to MaxDistance
func (c *Controller) resist(distance float64) float64 {
	maxDistance := c.opts.MaxDistance
	if distance <= 0 || maxDistance <= 0 {
		return 0
	}
	if distance > maxDistance {
		distance = maxDistance
	}
	return maxDistance * math.Pow(distance/maxDistance, c.opts.Resistance)
}

func (c *Controller) progressLocked() float64 {
	switch c.state {
	case StateRefreshing:
		return 1
	case StateIdle:
		return 0
	}
	trigger := c.opts.TriggerDistance()
	if trigger <= 0 {
		return 1
	}
	return math.Min(1, math.Max(0, c.pulled/trigger))
}

// emitUnlock queues the current state, releases c.mu and delivers queued
// transitions in order unless another goroutine already does
func (c *Controller) emitUnlock() {
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.pending = append(c.pending, change{state: c.state, progress: c.progressLocked(), observers: observers})
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.mu.Unlock()
			return
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		for _, fn := range next.observers {
			fn(next.state, next.progress)
		}
	}
}
