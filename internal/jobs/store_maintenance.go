package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Stats counts jobs per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("job stats: %w", err)
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

// Health folds Stats into queued, processing and terminal buckets.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	counts, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var sum HealthSummary
	for st, n := range counts {
		sum.Total += n
		switch {
		case st == StatusInitialized:
			sum.Queued += n
		case st == StatusCompleted:
			sum.Completed += n
		case st == StatusFailed:
			sum.Failed += n
		case st.IsActive():
			sum.Processing += n
		}
	}
	return sum, nil
}

// CheckHealth probes the database file. A missing file is not an error; the
// report simply says it does not exist yet.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	report := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return report, errors.New("job database path is unknown")
	}
	switch info, err := os.Stat(s.path); {
	case errors.Is(err, os.ErrNotExist):
		return report, nil
	case err != nil:
		return report, fmt.Errorf("stat job database: %w", err)
	case info.IsDir():
		return report, fmt.Errorf("job database path %q is a directory", s.path)
	}
	report.DatabaseExists = true

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	fail := func(step string, err error) (DatabaseHealth, error) {
		report.Error = err.Error()
		return report, fmt.Errorf("%s: %w", step, err)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fail("ping job database", err)
	}
	report.DatabaseReadable = true

	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&report.SchemaVersion); err != nil {
		return fail("read schema version", err)
	}
	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&integrity); err != nil {
		return fail("integrity check", err)
	}
	report.IntegrityCheck = integrity == "ok"
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&report.TotalJobs); err != nil {
		return fail("count jobs", err)
	}
	return report, nil
}
