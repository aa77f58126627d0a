package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/utils"
)

// outcome of one pass of the fetch pipeline
type retrieval struct {
	value     []byte
	fetchedAt time.Time
	err       error
	// fromOffline marks a value read from the offline store
	fromOffline bool
}

// startFetch joins or starts the fetch of key. The returned channel is closed once
// the fetch result was applied.
func (s *Store) startFetch(key models.CacheKey) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(done)
		return done
	}
	s.wg.Add(1)
	s.mu.Unlock()

	ch := s.flight.DoChan(string(key), func() (interface{}, error) {
		return nil, s.fetch(key)
	})

	go func() {
		defer s.wg.Done()
		<-ch
		close(done)
		s.restartPending(key)
	}()
	return done
}

// restartPending starts the follow-up fetch requested while a fetch was in flight
func (s *Store) restartPending(key models.CacheKey) {
	s.mu.Lock()
	e, ok := s.entries[key]
	restart := ok && e.pending && !e.inflight && !s.closed
	s.mu.Unlock()

	if restart {
		s.startFetch(key)
	}
}

// fetch runs the pipeline once and applies its result to the entry it started for
func (s *Store) fetch(key models.CacheKey) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return errEvicted
	}
	e.inflight = true
	e.pending = false
	if !e.speculative {
		e.state = models.EntryStateRevalidating
	}
	gen := e.gen
	policy := e.policy
	hadValue := e.value != nil
	s.mu.Unlock()

	start := s.clock.Now()
	result := s.retrieve(key, policy, hadValue)
	latency := s.clock.Since(start)

	fetchResult := "success"
	if result.err != nil {
		fetchResult = "failure"
	} else if result.fromOffline {
		fetchResult = "offline"
	}
	metrics.RecordClientFetch(string(policy.Category), fetchResult, latency)

	s.complete(e, gen, result, hadValue, latency)
	return result.err
}

// retrieve reads the network, or the offline store while offline or as a fallback
func (s *Store) retrieve(key models.CacheKey, policy models.CachePolicy, hadValue bool) retrieval {
	if s.isOffline() {
		value, storedAt, err := s.readOffline(key)
		if err != nil {
			return retrieval{err: err}
		}
		return retrieval{value: value, fetchedAt: storedAt, fromOffline: true}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	defer cancel()

	result, err := s.fetcher.Fetch(ctx, key)
	if err != nil {
		err = s.asFetchError(ctx, key, err)
		s.logger.Debug("Client fetch failed", zap.String("key", string(key)), zap.Error(err))

		if !hadValue && s.offline != nil {
			if value, storedAt, offErr := s.readOffline(key); offErr == nil {
				return retrieval{value: value, fetchedAt: storedAt, err: err, fromOffline: true}
			}
		}
		return retrieval{err: err}
	}

	if policy.Offline && s.offline != nil {
		s.writeThrough(result)
	}
	return retrieval{value: result.Data, fetchedAt: s.clock.Now()}
}

// asFetchError normalizes err into a *models.FetchError, marking deadline overruns as timeouts
func (s *Store) asFetchError(ctx context.Context, key models.CacheKey, err error) error {
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)

	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) {
		if timedOut && !errors.Is(err, models.ErrFetchTimeout) {
			return &models.FetchError{URL: fetchErr.URL, StatusCode: fetchErr.StatusCode, Err: fmt.Errorf("%w: %v", context.DeadlineExceeded, err)}
		}
		return err
	}

	if timedOut {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return &models.FetchError{URL: string(key), Err: err}
}

func (s *Store) readOffline(key models.CacheKey) ([]byte, time.Time, error) {
	if s.offline == nil {
		return nil, time.Time{}, models.ErrOfflineUnavailable
	}

	req, err := s.fetcher.RequestFor(key)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", models.ErrOfflineUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	defer cancel()

	resp, err := s.offline.Read(ctx, req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", models.ErrOfflineUnavailable, err)
	}

	data, err := utils.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: stored response unusable: %v", models.ErrOfflineUnavailable, err)
	}
	return data, resp.StoredAt, nil
}

func (s *Store) writeThrough(result *models.FetchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	defer cancel()

	err := s.offline.Write(ctx, result.Request, models.OfflineResponse{
		Status:      http.StatusOK,
		ContentType: result.ContentType,
		Body:        result.Body,
	})
	if err != nil {
		s.logger.Warn("Offline write-through failed", zap.String("key", result.Request.Key()), zap.Error(err))
	}
}

func (s *Store) isOffline() bool {
	return s.network != nil && !s.network.State().Online
}

// complete applies a retrieval unless the entry was evicted or outdated meanwhile,
// then notifies subscribers
func (s *Store) complete(e *entry, gen uint64, result retrieval, hadValue bool, latency time.Duration) {
	s.mu.Lock()
	if s.entries[e.key] != e {
		// Evicted while in flight, eviction already released the key to new fetches
		s.mu.Unlock()
		return
	}
	// Fetches requested from here on start a new call instead of joining this one
	s.flight.Forget(string(e.key))
	e.inflight = false

	if e.gen != gen {
		if e.state == models.EntryStateRevalidating {
			e.state = models.EntryStateStale
			if e.value == nil {
				e.state = models.EntryStateEmpty
			}
		}
		s.mu.Unlock()
		return
	}

	if !hadValue {
		s.recordOutcome(e.policy.Category, models.OutcomeMiss, latency)
	}

	switch {
	case result.value != nil:
		s.setValueLocked(e, result.value)
		e.fetchedAt = result.fetchedAt
		e.speculative = false
		e.err = result.err
		switch {
		case result.err != nil:
			e.state = models.EntryStateError
		case result.fromOffline && e.policy.IsStale(result.fetchedAt, s.clock.Now()):
			e.state = models.EntryStateStale
		default:
			e.state = models.EntryStateFresh
		}
	default:
		// The last known value is kept alongside the error
		e.err = result.err
		e.state = models.EntryStateError
	}

	deliver := e.enqueueLocked()
	s.mu.Unlock()

	if deliver {
		s.drain(e)
	}
}
