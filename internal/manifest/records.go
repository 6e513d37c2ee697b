package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record describes one assembled artifact.
type Record struct {
	DateKey       string
	Path          string
	Frames        int
	Skipped       int
	Bytes         int64
	FPS           int
	Width         int
	Height        int
	CorrelationID string
	CreatedAt     time.Time
}

const recordColumns = `date_key, path, frames, skipped, bytes, fps, width, height, correlation_id, created_at`

// Upsert inserts rec or replaces the record for the same date key.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.DateKey == "" {
		return errors.New("manifest upsert: empty date key")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO artifacts (`+recordColumns+`)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(date_key) DO UPDATE SET
                path = excluded.path,
                frames = excluded.frames,
                skipped = excluded.skipped,
                bytes = excluded.bytes,
                fps = excluded.fps,
                width = excluded.width,
                height = excluded.height,
                correlation_id = excluded.correlation_id,
                created_at = excluded.created_at`,
			rec.DateKey, rec.Path, rec.Frames, rec.Skipped, rec.Bytes, rec.FPS,
			rec.Width, rec.Height, rec.CorrelationID, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// Get returns the record for dateKey, or nil when none exists.
func (s *Store) Get(ctx context.Context, dateKey string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM artifacts WHERE date_key = ?`, dateKey)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest record %s: %w", dateKey, err)
	}
	return rec, nil
}

// List returns every record ordered by date key.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM artifacts ORDER BY date_key`)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manifest record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Delete removes the record for dateKey if present.
func (s *Store) Delete(ctx context.Context, dateKey string) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE date_key = ?`, dateKey)
		return err
	})
}

// Reconcile drops records whose artifact no longer exists according to
// exists, returning the date keys removed.
func (s *Store) Reconcile(ctx context.Context, exists func(path string) bool) ([]string, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, rec := range records {
		if exists(rec.Path) {
			continue
		}
		if err := s.Delete(ctx, rec.DateKey); err != nil {
			return removed, fmt.Errorf("delete stale record %s: %w", rec.DateKey, err)
		}
		removed = append(removed, rec.DateKey)
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec     Record
		created string
	)
	if err := row.Scan(&rec.DateKey, &rec.Path, &rec.Frames, &rec.Skipped, &rec.Bytes, &rec.FPS,
		&rec.Width, &rec.Height, &rec.CorrelationID, &created); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}
