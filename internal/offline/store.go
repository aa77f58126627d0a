package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Ensure Layer implements interfaces.OfflineStore
var _ interfaces.OfflineStore = (*Layer)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS offline_entries (
    cache_key    TEXT PRIMARY KEY,
    generation   TEXT NOT NULL,
    method       TEXT NOT NULL,
    url          TEXT NOT NULL,
    status       INTEGER NOT NULL,
    content_type TEXT NOT NULL DEFAULT '',
    body         BLOB NOT NULL,
    size_bytes   INTEGER NOT NULL,
    stored_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_offline_entries_generation ON offline_entries (generation);
`

// Layer is the SQLite-backed persisted response store.
// Entries belong to a cache generation; only the current generation is readable.
type Layer struct {
	db         *sql.DB
	generation string
	clock      clock.Clock
	logger     *zap.Logger
}

// Open opens and migrates the store at path for generation. A nil clock uses the wall clock.
func Open(path, generation string, clk clock.Clock, logger *zap.Logger) (*Layer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if strings.TrimSpace(generation) == "" {
		return nil, fmt.Errorf("cache generation is required")
	}
	if clk == nil {
		clk = clock.New()
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("Offline store opened", zap.String("path", path), zap.String("generation", generation))
	return &Layer{db: db, generation: generation, clock: clk, logger: logger}, nil
}

// Close releases the underlying SQLite connection
func (l *Layer) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Generation returns the current cache generation
func (l *Layer) Generation() string {
	return l.generation
}

// Read returns the stored response of req or models.ErrNotFound
func (l *Layer) Read(ctx context.Context, req models.OfflineRequest) (*models.OfflineResponse, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	row := l.db.QueryRowContext(ctx,
		`SELECT status, content_type, body, stored_at
		 FROM offline_entries
		 WHERE cache_key = ? AND generation = ?`,
		req.Key(), l.generation,
	)

	var resp models.OfflineResponse
	var storedAt int64
	if err := row.Scan(&resp.Status, &resp.ContentType, &resp.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, req.Key())
		}
		return nil, fmt.Errorf("read offline entry: %w", err)
	}
	resp.StoredAt = time.UnixMilli(storedAt).UTC()
	return &resp, nil
}

// Write upserts the response of req into the current generation
func (l *Layer) Write(ctx context.Context, req models.OfflineRequest, resp models.OfflineResponse) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if req.URL == "" {
		return fmt.Errorf("request url is required")
	}
	if resp.Body == nil {
		resp.Body = []byte{}
	}
	if resp.StoredAt.IsZero() {
		resp.StoredAt = l.clock.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO offline_entries (
		    cache_key, generation, method, url, status, content_type, body, size_bytes, stored_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		    generation = excluded.generation,
		    method = excluded.method,
		    url = excluded.url,
		    status = excluded.status,
		    content_type = excluded.content_type,
		    body = excluded.body,
		    size_bytes = excluded.size_bytes,
		    stored_at = excluded.stored_at`,
		req.Key(), l.generation, req.Method, req.URL, resp.Status, resp.ContentType,
		resp.Body, int64(len(resp.Body)), resp.StoredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write offline entry: %w", err)
	}
	return nil
}

// ListEntries lists every stored entry of every generation, ordered by key
func (l *Layer) ListEntries(ctx context.Context) ([]models.OfflineEntryInfo, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT cache_key, size_bytes, generation, stored_at
		 FROM offline_entries
		 ORDER BY cache_key`,
	)
	if err != nil {
		return nil, fmt.Errorf("list offline entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.OfflineEntryInfo
	for rows.Next() {
		var info models.OfflineEntryInfo
		var storedAt int64
		if err := rows.Scan(&info.Key, &info.SizeBytes, &info.Generation, &storedAt); err != nil {
			return nil, fmt.Errorf("scan offline entry: %w", err)
		}
		info.StoredAt = time.UnixMilli(storedAt).UTC()
		entries = append(entries, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offline entries: %w", err)
	}
	return entries, nil
}

// EvictStale deletes the entries of superseded generations and returns how many were removed
func (l *Layer) EvictStale(ctx context.Context) (int, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	res, err := l.db.ExecContext(ctx, `DELETE FROM offline_entries WHERE generation <> ?`, l.generation)
	if err != nil {
		return 0, fmt.Errorf("evict stale offline entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count evicted offline entries: %w", err)
	}
	if n > 0 {
		l.logger.Info("Evicted superseded offline entries", zap.Int64("count", n), zap.String("generation", l.generation))
	}
	return int(n), nil
}
