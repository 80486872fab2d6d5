package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/services"
	"dubber/internal/testsupport"
)

func newRepo(t *testing.T, opts ...jobs.RepositoryOption) *jobs.Repository {
	t.Helper()
	return testsupport.NewRepository(t, testsupport.NewConfig(t), opts...)
}

func advanceTo(t *testing.T, repo *jobs.Repository, id string, target jobs.Status) {
	t.Helper()
	ctx := context.Background()
	for _, status := range jobs.PipelineOrder()[1:] {
		if status == jobs.StatusCompleted {
			break
		}
		if _, err := repo.Transition(ctx, id, status); err != nil {
			t.Fatalf("Transition(%s) failed: %v", status, err)
		}
		if status == target {
			return
		}
	}
}

func TestRepositoryLifecycleProgressIsMonotonic(t *testing.T) {
	var (
		mu       sync.Mutex
		observed []jobs.Job
	)
	repo := newRepo(t, jobs.WithObserver(func(job jobs.Job) {
		mu.Lock()
		observed = append(observed, job)
		mu.Unlock()
	}))
	ctx := context.Background()

	job, err := repo.Create(ctx, "job-1", jobs.Spec{Source: "/in.mp4", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.Status != jobs.StatusInitialized || job.Progress != 0 {
		t.Fatalf("unexpected initial job: %#v", job)
	}

	advanceTo(t, repo, "job-1", jobs.StatusTranslating)
	for done := 0; done <= 4; done++ {
		if _, err := repo.Progress(ctx, "job-1", done, 4); err != nil {
			t.Fatalf("Progress failed: %v", err)
		}
	}
	// A stale report must not lower progress.
	if job, err = repo.Progress(ctx, "job-1", 1, 4); err != nil || job.Progress != 60 {
		t.Fatalf("expected progress to stay at 60, got %d err=%v", job.Progress, err)
	}

	advanceTo2 := []jobs.Status{jobs.StatusGeneratingSpeech, jobs.StatusSynchronizing}
	for _, status := range advanceTo2 {
		if _, err := repo.Transition(ctx, "job-1", status); err != nil {
			t.Fatalf("Transition(%s) failed: %v", status, err)
		}
	}
	job, err = repo.Complete(ctx, "job-1", "/out/job-1.mp4")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if job.Progress != 100 || job.ResultPath != "/out/job-1.mp4" || job.CompletedAt.IsZero() {
		t.Fatalf("unexpected completed job: %#v", job)
	}

	mu.Lock()
	defer mu.Unlock()
	last := -1
	for _, snap := range observed {
		if snap.Progress < last {
			t.Fatalf("progress decreased from %d to %d at %s", last, snap.Progress, snap.Status)
		}
		if snap.Progress == 100 && snap.Status != jobs.StatusCompleted {
			t.Fatalf("progress 100 reported while %s", snap.Status)
		}
		last = snap.Progress
	}
}

func TestRepositoryRejectsInvalidTransitions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, "j", jobs.Spec{Source: "/in.mp4", TargetLanguage: "fr"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := repo.Transition(ctx, "j", jobs.StatusTranscribing); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for skipped state, got %v", err)
	}
	if _, err := repo.Complete(ctx, "j", "/out.mp4"); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for early completion, got %v", err)
	}

	if _, err := repo.Transition(ctx, "j", jobs.StatusDownloading); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if _, err := repo.Progress(ctx, "j", 1, 2); err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	failed, err := repo.Fail(ctx, "j", "source unavailable: 404")
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if failed.Progress != 7 || failed.ErrorMessage != "source unavailable: 404" || failed.ResultPath != "" {
		t.Fatalf("unexpected failed job: %#v", failed)
	}

	if _, err := repo.Transition(ctx, "j", jobs.StatusExtractingAudio); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
	if _, err := repo.Fail(ctx, "j", "again"); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected terminal rejection on second fail, got %v", err)
	}
}

func TestRepositoryGetUnknown(t *testing.T) {
	repo := newRepo(t)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositorySnapshotsAreStable(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, "snap", jobs.Spec{Source: "/in.mp4", TargetLanguage: "de"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	first, err := repo.Get(ctx, "snap")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := repo.Get(ctx, "snap")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if first != second {
		t.Fatalf("back-to-back snapshots differ: %#v vs %#v", first, second)
	}

	if _, err := repo.Transition(ctx, "snap", jobs.StatusDownloading); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if first.Status != jobs.StatusInitialized {
		t.Fatalf("held snapshot mutated: %#v", first)
	}
}

func TestRepositoryWaitAndCancel(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, "w", jobs.Spec{Source: "/in.mp4", TargetLanguage: "pt"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.RequestCancel(ctx, "w"); err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	if !repo.CancelRequested("w") {
		t.Fatal("expected cancel flag")
	}

	done := make(chan jobs.Job, 1)
	go func() {
		job, _ := repo.Wait(ctx, "w")
		done <- job
	}()

	if _, err := repo.Fail(ctx, "w", jobs.CancelReason); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	select {
	case job := <-done:
		if job.Status != jobs.StatusFailed || job.ErrorMessage != jobs.CancelReason {
			t.Fatalf("unexpected waited job: %#v", job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after job failed")
	}

	if _, err := repo.RequestCancel(ctx, "w"); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected cancel of terminal job to be rejected, got %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := repo.Create(ctx, "pending", jobs.Spec{Source: "/in.mp4", TargetLanguage: "pt"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Wait(waitCtx, "pending"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestRepositoryAnnotateKeepsLifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, "a", jobs.Spec{Source: "/in.mp4", TargetLanguage: "es"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	job, err := repo.Annotate(ctx, "a", func(j *jobs.Job) {
		j.SpeakerCount = 2
		j.Status = jobs.StatusCompleted
		j.Progress = 100
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if job.SpeakerCount != 2 || job.Status != jobs.StatusInitialized || job.Progress != 0 {
		t.Fatalf("unexpected annotated job: %#v", job)
	}
}

func TestRepositoryRemoveAndRecover(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	repo := jobs.NewRepository(store)
	ctx := context.Background()

	if _, err := repo.Create(ctx, "running", jobs.Spec{Source: "/in.mp4", TargetLanguage: "es"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Transition(ctx, "running", jobs.StatusDownloading); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if _, err := repo.Remove(ctx, "running"); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected active job removal to be rejected, got %v", err)
	}

	// A fresh repository over the same store simulates a daemon restart.
	restarted := jobs.NewRepository(store)
	recovered, err := restarted.Recover(ctx, jobs.DaemonStopReason)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(recovered) != 1 || recovered[0].ID != "running" {
		t.Fatalf("unexpected recovered jobs: %#v", recovered)
	}
	job, err := restarted.Get(ctx, "running")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != jobs.StatusFailed || job.ErrorMessage != jobs.DaemonStopReason {
		t.Fatalf("unexpected recovered job: %#v", job)
	}

	if _, err := restarted.Remove(ctx, "running"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := restarted.Get(ctx, "running"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected removed job to be gone, got %v", err)
	}

	stats, err := restarted.Stats(ctx, 10)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 0 || len(stats.Recent) != 0 {
		t.Fatalf("expected empty stats, got %#v", stats)
	}
}
