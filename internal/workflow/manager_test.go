package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/notifications"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/workflow"
)

type stubStage struct {
	name   string
	mu     *sync.Mutex
	calls  *[]string
	exec   func(ctx context.Context, run *stage.Run) error
	health stage.Health
}

func (s *stubStage) Prepare(context.Context, *stage.Run) error { return nil }

func (s *stubStage) Execute(ctx context.Context, run *stage.Run) error {
	s.mu.Lock()
	*s.calls = append(*s.calls, s.name)
	s.mu.Unlock()
	run.Report(1, 1)
	if s.exec != nil {
		return s.exec(ctx, run)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	if s.health.Name != "" {
		return s.health
	}
	return stage.Healthy(s.name)
}

type recorder struct {
	mu     sync.Mutex
	calls  []string
	stages map[string]*stubStage
}

func newRecorder() *recorder {
	r := &recorder{stages: map[string]*stubStage{}}
	for _, name := range []string{"download", "extract", "diarize", "transcribe", "align", "voices", "translate", "synthesize", "sync"} {
		r.stages[name] = &stubStage{name: name, mu: &r.mu, calls: &r.calls}
	}
	r.stages["sync"].exec = func(_ context.Context, run *stage.Run) error {
		run.ResultPath = filepath.Join(run.OutputDir, "clip.es.mp4")
		return nil
	}
	return r
}

func (r *recorder) set() workflow.StageSet {
	return workflow.StageSet{
		Download:   r.stages["download"],
		Extract:    r.stages["extract"],
		Diarize:    r.stages["diarize"],
		Transcribe: r.stages["transcribe"],
		Align:      r.stages["align"],
		Voices:     r.stages["voices"],
		Translate:  r.stages["translate"],
		Synthesize: r.stages["synthesize"],
		Sync:       r.stages["sync"],
	}
}

func (r *recorder) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (f *fakeNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) snapshot() []notifications.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.Event(nil), f.events...)
}

type statusLog struct {
	mu       sync.Mutex
	statuses map[string][]jobs.Status
}

func (s *statusLog) observe(job jobs.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = map[string][]jobs.Status{}
	}
	seq := s.statuses[job.ID]
	if len(seq) == 0 || seq[len(seq)-1] != job.Status {
		s.statuses[job.ID] = append(seq, job.Status)
	}
}

func (s *statusLog) of(id string) []jobs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.Status(nil), s.statuses[id]...)
}

type harness struct {
	cfg      *config.Config
	repo     *jobs.Repository
	manager  *workflow.Manager
	stages   *recorder
	notifier *fakeNotifier
	statuses *statusLog
	source   string
}

func newHarness(t *testing.T, configure func(*recorder), opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	h := &harness{cfg: cfg, stages: newRecorder(), notifier: &fakeNotifier{}, statuses: &statusLog{}}
	h.repo = testsupport.NewRepository(t, cfg, jobs.WithObserver(h.statuses.observe))
	h.manager = workflow.NewManager(cfg, h.repo, nil, workflow.WithNotifier(h.notifier))
	if configure != nil {
		configure(h.stages)
	}
	h.manager.ConfigureStages(h.stages.set())
	h.source = filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteFile(t, h.source, []byte("video"))
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.manager.Stop)
}

func (h *harness) submit(t *testing.T) jobs.Job {
	t.Helper()
	job, err := h.manager.Submit(context.Background(), workflow.Request{Source: h.source, TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return job
}

func (h *harness) wait(t *testing.T, id string) jobs.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := h.manager.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return job
}

func TestManagerRunsStagesInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	job := h.submit(t)
	if job.Status != jobs.StatusInitialized || job.Progress != 0 {
		t.Fatalf("unexpected submitted job: %+v", job)
	}
	final := h.wait(t, job.ID)

	if final.Status != jobs.StatusCompleted || final.Progress != 100 {
		t.Fatalf("expected completed at 100, got %s at %d (%s)", final.Status, final.Progress, final.ErrorMessage)
	}
	if !strings.HasSuffix(final.ResultPath, "clip.es.mp4") {
		t.Fatalf("unexpected result path %q", final.ResultPath)
	}
	want := []string{"download", "extract", "diarize", "transcribe", "align", "voices", "translate", "synthesize", "sync"}
	if got := h.stages.called(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stage order = %v, want %v", got, want)
	}
	wantStatuses := []jobs.Status{
		jobs.StatusInitialized, jobs.StatusDownloading, jobs.StatusExtractingAudio, jobs.StatusDiarizing,
		jobs.StatusTranscribing, jobs.StatusTranslating, jobs.StatusGeneratingSpeech,
		jobs.StatusSynchronizing, jobs.StatusCompleted,
	}
	got := h.statuses.of(job.ID)
	if len(got) != len(wantStatuses) {
		t.Fatalf("status sequence = %v, want %v", got, wantStatuses)
	}
	for i := range wantStatuses {
		if got[i] != wantStatuses[i] {
			t.Fatalf("status sequence = %v, want %v", got, wantStatuses)
		}
	}

	result, err := h.manager.Result(context.Background(), job.ID)
	if err != nil || result != final.ResultPath {
		t.Fatalf("Result = %q, %v", result, err)
	}
	if events := h.notifier.snapshot(); len(events) != 1 || events[0] != notifications.EventJobCompleted {
		t.Fatalf("expected one completion notification, got %v", events)
	}

	data, err := os.ReadFile(h.cfg.JobLogPath(job.ID))
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"stage_complete"`) {
		t.Fatalf("job log missing stage_complete events:\n%s", data)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, nil)
	cases := map[string]workflow.Request{
		"empty source":       {Source: "  ", TargetLanguage: "es"},
		"missing file":       {Source: filepath.Join(t.TempDir(), "nope.mp4"), TargetLanguage: "es"},
		"unsupported scheme": {Source: "ftp://example.com/clip.mp4", TargetLanguage: "es"},
		"unknown target":     {Source: h.source, TargetLanguage: "xx"},
		"empty target":       {Source: h.source},
		"bad source lang":    {Source: h.source, TargetLanguage: "es", SourceLanguage: "@@"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.manager.Submit(context.Background(), req)
			if !errors.Is(err, services.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	all, err := h.manager.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("rejected submissions created jobs: %+v", all)
	}
}

func TestSubmitAcceptsURLWithoutTouchingIt(t *testing.T) {
	h := newHarness(t, nil)
	job, err := h.manager.Submit(context.Background(), workflow.Request{
		Source:         "https://example.com/watch?v=abc",
		TargetLanguage: "ES",
		AccentHint:     " mexican ",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.TargetLanguage != "es" || job.AccentHint != "mexican" {
		t.Fatalf("unexpected normalization: %+v", job)
	}
	if h.manager.QueueDepth() != 1 {
		t.Fatalf("expected job queued before Start, depth %d", h.manager.QueueDepth())
	}
}

func TestStageFailureRecordsMessage(t *testing.T) {
	stageErr := services.Wrap(services.ErrTranslation, "translate", "segment 3", "backend refused", nil)
	h := newHarness(t, func(r *recorder) {
		r.stages["translate"].exec = func(context.Context, *stage.Run) error { return stageErr }
	})
	h.start(t)

	final := h.wait(t, h.submit(t).ID)
	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage != stageErr.Error() {
		t.Fatalf("error message = %q, want %q", final.ErrorMessage, stageErr.Error())
	}
	band, _ := jobs.StatusTranslating.Band()
	if final.Progress < band.Floor || final.Progress > band.Ceil {
		t.Fatalf("progress %d left the translating band", final.Progress)
	}
	for _, name := range h.stages.called() {
		if name == "synthesize" || name == "sync" {
			t.Fatalf("stage %s ran after failure", name)
		}
	}
	if _, err := h.manager.Result(context.Background(), final.ID); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected ErrNotReady for failed job, got %v", err)
	}
	if events := h.notifier.snapshot(); len(events) != 1 || events[0] != notifications.EventJobFailed {
		t.Fatalf("expected one failure notification, got %v", events)
	}
}

func TestCancelRunningJobStopsAtStageBoundary(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(r *recorder) {
		r.stages["download"].exec = func(ctx context.Context, _ *stage.Run) error {
			close(entered)
			return awaitRelease(ctx, release)
		}
	})
	h.start(t)
	job := h.submit(t)

	<-entered
	if err := h.manager.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	final := h.wait(t, job.ID)
	if final.Status != jobs.StatusFailed || final.ErrorMessage != jobs.CancelReason {
		t.Fatalf("expected cancelled failure, got %s %q", final.Status, final.ErrorMessage)
	}
	if got := h.stages.called(); len(got) != 1 {
		t.Fatalf("expected only download to run, got %v", got)
	}
	if events := h.notifier.snapshot(); len(events) != 0 {
		t.Fatalf("cancelled job should not notify, got %v", events)
	}
	if err := h.manager.Cancel(context.Background(), job.ID); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling a finished job, got %v", err)
	}
}

func TestCancelQueuedJobFailsImmediately(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h := newHarness(t, func(r *recorder) {
		r.stages["download"].exec = func(ctx context.Context, _ *stage.Run) error {
			entered <- struct{}{}
			return awaitRelease(ctx, release)
		}
	}, testsupport.WithMaxConcurrentJobs(1))
	h.start(t)

	first := h.submit(t)
	<-entered
	second := h.submit(t)

	if err := h.manager.Cancel(context.Background(), second.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	queued, err := h.manager.Status(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if queued.Status != jobs.StatusFailed || queued.ErrorMessage != jobs.CancelReason {
		t.Fatalf("expected queued job failed on cancel, got %s %q", queued.Status, queued.ErrorMessage)
	}

	close(release)
	if final := h.wait(t, first.ID); final.Status != jobs.StatusCompleted {
		t.Fatalf("first job should complete, got %s (%s)", final.Status, final.ErrorMessage)
	}
}

func TestCancelQueuedJobKeepsItQueuedWhenFailWrites(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h := newHarness(t, func(r *recorder) {
		r.stages["download"].exec = func(ctx context.Context, _ *stage.Run) error {
			entered <- struct{}{}
			return awaitRelease(ctx, release)
		}
	}, testsupport.WithMaxConcurrentJobs(1))
	h.start(t)

	first := h.submit(t)
	<-entered
	second := h.submit(t)

	dead, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.manager.Cancel(dead, second.ID); err == nil {
		t.Fatal("expected Cancel with a dead context to fail")
	}
	if depth := h.manager.QueueDepth(); depth != 1 {
		t.Fatalf("expected job back in the queue, depth %d", depth)
	}

	close(release)
	for _, id := range []string{first.ID, second.ID} {
		if final := h.wait(t, id); final.Status != jobs.StatusCompleted {
			t.Fatalf("job %s ended %s (%s)", id, final.Status, final.ErrorMessage)
		}
	}
}

// awaitRelease blocks a stage until release closes or the job is stopped.
func awaitRelease(ctx context.Context, release <-chan struct{}) error {
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestConcurrencyLimitQueuesExcessJobs(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	release := make(chan struct{})
	h := newHarness(t, func(r *recorder) {
		r.stages["download"].exec = func(ctx context.Context, _ *stage.Run) error {
			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()
			err := awaitRelease(ctx, release)
			mu.Lock()
			running--
			mu.Unlock()
			return err
		}
	}, testsupport.WithMaxConcurrentJobs(2))
	h.start(t)

	ids := make([]string, 0, 4)
	for range 4 {
		ids = append(ids, h.submit(t).ID)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.manager.ActiveJobs() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.manager.QueueDepth() != 2 {
		t.Fatalf("expected two queued jobs, got %d", h.manager.QueueDepth())
	}
	close(release)
	for _, id := range ids {
		if final := h.wait(t, id); final.Status != jobs.StatusCompleted {
			t.Fatalf("job %s ended %s (%s)", id, final.Status, final.ErrorMessage)
		}
	}
	if peak > 2 {
		t.Fatalf("ran %d jobs at once with a limit of 2", peak)
	}
}

func TestStopFailsRunningJobWithDaemonReason(t *testing.T) {
	entered := make(chan struct{})
	h := newHarness(t, func(r *recorder) {
		r.stages["diarize"].exec = func(ctx context.Context, _ *stage.Run) error {
			close(entered)
			<-ctx.Done()
			return ctx.Err()
		}
	})
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := h.submit(t)
	<-entered
	h.manager.Stop()

	final, err := h.manager.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if final.Status != jobs.StatusFailed || final.ErrorMessage != jobs.DaemonStopReason {
		t.Fatalf("expected daemon stop failure, got %s %q", final.Status, final.ErrorMessage)
	}
}

func TestPreflightFailureFailsJob(t *testing.T) {
	h := newHarness(t, func(r *recorder) {
		r.stages["synthesize"].health = stage.Unhealthy("synthesize", "synthesis api key missing")
	})
	records := h.manager.Health(context.Background())
	if stage.AllReady(records) {
		t.Fatalf("expected unhealthy records, got %+v", records)
	}
	h.start(t)

	final := h.wait(t, h.submit(t).ID)
	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "synthesis api key missing") {
		t.Fatalf("error message should carry preflight detail: %q", final.ErrorMessage)
	}
	if got := h.stages.called(); len(got) != 0 {
		t.Fatalf("no stage should run after preflight failure, got %v", got)
	}
}

func TestRemovePurgesFinishedJob(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(r *recorder) {
		r.stages["download"].exec = func(ctx context.Context, run *stage.Run) error {
			if err := os.MkdirAll(filepath.Join(run.WorkDir, "source"), 0o755); err != nil {
				return err
			}
			close(entered)
			return awaitRelease(ctx, release)
		}
	})
	h.start(t)
	job := h.submit(t)

	<-entered
	if err := h.manager.Remove(context.Background(), job.ID); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected running job removal refused, got %v", err)
	}
	close(release)
	h.wait(t, job.ID)

	if err := h.manager.Remove(context.Background(), job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(h.cfg.JobWorkDir(job.ID)); !os.IsNotExist(err) {
		t.Fatalf("work dir should be gone, stat err %v", err)
	}
	if _, err := h.manager.Status(context.Background(), job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}
