package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubber/internal/api"
	"dubber/internal/apiclient"
)

func submitJSON(t *testing.T, env *cliTestEnv, args ...string) api.Job {
	t.Helper()
	out, _, err := runCLI(t, env.configPath, append([]string{"submit", env.source, "--lang", "es", "--json"}, args...)...)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var job api.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	return job
}

func jobStatus(t *testing.T, env *cliTestEnv, id string) api.Job {
	t.Helper()
	client, err := apiclient.New(env.cfg.API.Bind, "")
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	job, err := client.Job(context.Background(), id)
	if err != nil {
		t.Fatalf("job %s: %v", id, err)
	}
	return job
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "dubber.toml")
	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected existing file to be refused")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t, false)
	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "Configuration valid")
}

func TestSubmitWaitAndDownloadResult(t *testing.T) {
	waitPollInterval = 20 * time.Millisecond
	env := setupCLITestEnv(t, false)

	out, _, err := runCLI(t, env.configPath, "submit", env.source, "--lang", "es", "--wait")
	if err != nil {
		t.Fatalf("submit --wait: %v", err)
	}
	requireContains(t, out, "completed")

	list, _, err := runCLI(t, env.configPath, "jobs", "--json")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	var jobsOut []api.Job
	if err := json.Unmarshal([]byte(list), &jobsOut); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobsOut) != 1 || jobsOut[0].Status != "completed" {
		t.Fatalf("unexpected jobs %+v", jobsOut)
	}
	id := jobsOut[0].ID

	dir := t.TempDir()
	out, _, err = runCLI(t, env.configPath, "result", id, "-o", dir)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	requireContains(t, out, "Saved")
	data, err := os.ReadFile(filepath.Join(dir, "clip.es.mp4"))
	if err != nil {
		t.Fatalf("read downloaded result: %v", err)
	}
	if string(data) != "dubbed" {
		t.Fatalf("result content = %q", data)
	}

	out, _, err = runCLI(t, env.configPath, "logs", id, "--lines", "0")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "stage completed")
}

func TestSubmitRequiresLanguage(t *testing.T) {
	env := setupCLITestEnv(t, false)
	if _, _, err := runCLI(t, env.configPath, "submit", env.source); err == nil {
		t.Fatal("expected missing --lang to fail")
	}
}

func TestJobsTableAndJobDetail(t *testing.T) {
	env := setupCLITestEnv(t, true)
	job := submitJSON(t, env, "--accent", "castilian")

	out, _, err := runCLI(t, env.configPath, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "clip.mp4")

	out, _, err = runCLI(t, env.configPath, "job", job.ID)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	requireContains(t, out, "Accent:    castilian")

	out, _, err = runCLI(t, env.configPath, "jobs", "--status", "completed")
	if err != nil {
		t.Fatalf("jobs --status: %v", err)
	}
	requireContains(t, out, "No jobs")

	if _, _, err := runCLI(t, env.configPath, "jobs", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestCancelRunningJob(t *testing.T) {
	env := setupCLITestEnv(t, true)
	job := submitJSON(t, env)
	waitFor(t, 5*time.Second, func() bool {
		return jobStatus(t, env, job.ID).Status == "downloading"
	})

	out, _, err := runCLI(t, env.configPath, "cancel", job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Cancellation requested")
	env.release()

	waitFor(t, 5*time.Second, func() bool {
		return jobStatus(t, env, job.ID).Status == "failed"
	})
	if _, _, err := runCLI(t, env.configPath, "cancel", job.ID); err == nil {
		t.Fatal("expected cancelling a finished job to fail")
	}

	out, _, err = runCLI(t, env.configPath, "remove", job.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Removed job")
	if _, _, err := runCLI(t, env.configPath, "job", job.ID); err == nil {
		t.Fatal("expected removed job to be gone")
	}
}

func TestStatusAndVoices(t *testing.T) {
	env := setupCLITestEnv(t, false)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Ready")
	requireContains(t, out, "Queue depth: 0")

	out, _, err = runCLI(t, env.configPath, "voices", "es")
	if err != nil {
		t.Fatalf("voices: %v", err)
	}
	requireContains(t, out, "v-lucia")

	out, _, err = runCLI(t, env.configPath, "voices", "fr")
	if err != nil {
		t.Fatalf("voices fr: %v", err)
	}
	requireContains(t, out, "No voices for fr")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, false)
	env.daemon.Stop()

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon is not running")

	_, _, err = runCLI(t, env.configPath, "jobs")
	if err == nil || !strings.Contains(err.Error(), "dubber start") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestDialAddress(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0:7487":         "127.0.0.1:7487",
		":7487":                "127.0.0.1:7487",
		"10.0.0.5:7487":        "10.0.0.5:7487",
		"http://dubber.lan:80": "http://dubber.lan:80",
		"[::]:7487":            "127.0.0.1:7487",
	}
	for in, want := range cases {
		if got := dialAddress(in); got != want {
			t.Fatalf("dialAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckOfflineReportsMissingTools(t *testing.T) {
	env := setupCLITestEnv(t, false)
	t.Setenv("PATH", t.TempDir())

	out, _, err := runCLI(t, env.configPath, "check", "--offline")
	if err == nil {
		t.Fatal("expected missing ffmpeg to fail the check")
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "missing (optional)")
	requireContains(t, out, "Work directory")
}
