package cleanup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dubber/internal/cleanup"
	"dubber/internal/jobs"
	"dubber/internal/logging"
)

type fakeSource struct {
	expired []jobs.Job
	all     []jobs.Job
	cutoff  time.Time
}

func (f *fakeSource) Expired(_ context.Context, cutoff time.Time) ([]jobs.Job, error) {
	f.cutoff = cutoff
	return f.expired, nil
}

func (f *fakeSource) List(context.Context, ...jobs.Status) ([]jobs.Job, error) {
	return f.all, nil
}

type fakeRemover struct {
	removed []string
	fail    map[string]error
}

func (f *fakeRemover) Remove(_ context.Context, id string) error {
	if err := f.fail[id]; err != nil {
		return err
	}
	f.removed = append(f.removed, id)
	return nil
}

func TestCleanOrphanedInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := cleanup.CleanOrphaned(dir, nil, logging.NewNop())
		if len(result.Orphans) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanOrphanedKeepsKnownJobsAndFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"job-a", "stray"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := cleanup.CleanOrphaned(root, map[string]struct{}{"job-a": {}}, logging.NewNop())
	if len(result.Orphans) != 1 || result.Orphans[0] != filepath.Join(root, "stray") {
		t.Fatalf("unexpected orphans %v", result.Orphans)
	}
	if _, err := os.Stat(filepath.Join(root, "job-a")); err != nil {
		t.Fatalf("known job directory removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "notes.txt")); err != nil {
		t.Fatalf("file removed: %v", err)
	}
}

func TestSweepPurgesExpiredJobs(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "live"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	source := &fakeSource{
		expired: []jobs.Job{{ID: "old", Status: jobs.StatusCompleted}, {ID: "stuck", Status: jobs.StatusFailed}},
		all:     []jobs.Job{{ID: "live", Status: jobs.StatusTranslating}},
	}
	remover := &fakeRemover{fail: map[string]error{"stuck": errors.New("busy")}}
	sweeper := cleanup.NewSweeper(source, remover, 24*time.Hour, []string{root}, nil)

	before := time.Now()
	result := sweeper.Sweep(context.Background())

	if len(result.Jobs) != 1 || result.Jobs[0] != "old" {
		t.Fatalf("unexpected purged jobs %v", result.Jobs)
	}
	if len(result.Errors) != 1 || result.Errors[0].Target != "stuck" {
		t.Fatalf("expected one error for stuck, got %+v", result.Errors)
	}
	if len(result.Orphans) != 0 {
		t.Fatalf("live job directory treated as orphan: %v", result.Orphans)
	}
	if want := before.Add(-24 * time.Hour); source.cutoff.Before(want.Add(-time.Second)) || source.cutoff.After(want.Add(time.Second)) {
		t.Fatalf("cutoff %v not ~24h ago", source.cutoff)
	}
}
