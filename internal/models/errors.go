package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory    = errors.New("unknown category")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrInvalidTag         = errors.New("invalid tag")
	ErrFetchFailure       = errors.New("fetch failure")
	ErrFetchTimeout       = errors.New("fetch timeout")
	ErrOptimisticRollback = errors.New("optimistic update rolled back")
	ErrOfflineUnavailable = errors.New("offline, no cached data available")
	ErrNotFound           = errors.New("not found")
)

// InvalidTagError names the tags that are outside the known tag universe
type InvalidTagError struct {
	Tags []string
}

func (e *InvalidTagError) Error() string {
	return "Invalid tags: " + strings.Join(e.Tags, ", ")
}

// Is matches ErrInvalidTag
func (e *InvalidTagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// FetchError describes a failed call to the data-fetch boundary
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches ErrFetchFailure for every fetch error, and ErrFetchTimeout for deadline overruns
func (e *FetchError) Is(target error) bool {
	if target == ErrFetchFailure {
		return true
	}
	if target == ErrFetchTimeout {
		return errors.Is(e.Err, context.DeadlineExceeded)
	}
	return false
}

// RollbackError is returned when an optimistic mutation failed to commit
// and the cache was restored
type RollbackError struct {
	Key CacheKey
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("optimistic update of %s rolled back: %v", e.Key, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// Is matches ErrOptimisticRollback
func (e *RollbackError) Is(target error) bool {
	return target == ErrOptimisticRollback
}
