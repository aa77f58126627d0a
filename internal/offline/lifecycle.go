package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"go-stats-cache/internal/models"
)

// ResourceClass selects the interception strategy of a request
type ResourceClass int

const (
	// ClassBypass requests go to the network untouched
	ClassBypass ResourceClass = iota
	// ClassShell resources are served cache-first
	ClassShell
	// ClassData requests are network-first with write-through and offline fallback
	ClassData
)

func (c ResourceClass) String() string {
	switch c {
	case ClassShell:
		return "shell"
	case ClassData:
		return "data"
	default:
		return "bypass"
	}
}

// FetchFunc performs a network request
type FetchFunc func(ctx context.Context, req models.OfflineRequest) (*models.OfflineResponse, error)

// Precache populates the current generation with the shell manifest.
// Every URL is attempted; failures are joined into the returned error.
func (l *Layer) Precache(ctx context.Context, manifest []string, fetch FetchFunc) error {
	var errs []error
	stored := 0
	for _, url := range manifest {
		req := models.NewOfflineRequest(http.MethodGet, url)
		resp, err := fetch(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", url, err))
			continue
		}
		if !cacheable(resp) {
			errs = append(errs, fmt.Errorf("precache %s: status %d", url, resp.Status))
			continue
		}
		if err := l.Write(ctx, req, *resp); err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", url, err))
			continue
		}
		stored++
	}

	l.logger.Info("Precached shell resources",
		zap.Int("stored", stored),
		zap.Int("manifest", len(manifest)),
		zap.String("generation", l.generation))
	return errors.Join(errs...)
}

// Intercept serves req according to class.
// Shell resources come from the store when present. Data requests go to the network,
// successful responses are written through and the stored copy is served when the
// network fails. models.ErrOfflineUnavailable is returned when nothing can be served.
func (l *Layer) Intercept(ctx context.Context, req models.OfflineRequest, class ResourceClass, network FetchFunc) (*models.OfflineResponse, error) {
	switch class {
	case ClassShell:
		if resp, err := l.Read(ctx, req); err == nil {
			return resp, nil
		} else if !errors.Is(err, models.ErrNotFound) {
			l.logger.Warn("Offline shell read failed", zap.String("key", req.Key()), zap.Error(err))
		}

		resp, err := network(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrOfflineUnavailable, err)
		}
		l.writeThrough(ctx, req, resp)
		return resp, nil

	case ClassData:
		resp, netErr := network(ctx, req)
		if netErr == nil {
			l.writeThrough(ctx, req, resp)
			return resp, nil
		}

		stored, err := l.Read(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrOfflineUnavailable, netErr)
		}
		l.logger.Debug("Serving offline copy", zap.String("key", req.Key()), zap.Error(netErr))
		return stored, nil

	default:
		return network(ctx, req)
	}
}

func (l *Layer) writeThrough(ctx context.Context, req models.OfflineRequest, resp *models.OfflineResponse) {
	if !cacheable(resp) {
		return
	}
	if err := l.Write(ctx, req, *resp); err != nil {
		l.logger.Warn("Offline write-through failed", zap.String("key", req.Key()), zap.Error(err))
	}
}

func cacheable(resp *models.OfflineResponse) bool {
	return resp != nil && resp.Status >= 200 && resp.Status <= 299
}
