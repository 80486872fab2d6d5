package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dubber/internal/acoustic"
	"dubber/internal/cleanup"
	"dubber/internal/config"
	"dubber/internal/daemon"
	"dubber/internal/deps"
	"dubber/internal/events"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/media/ffmpeg"
	"dubber/internal/metrics"
	"dubber/internal/notifications"
	"dubber/internal/pipeline"
	"dubber/internal/preflight"
	"dubber/internal/services"
	"dubber/internal/services/llm"
	"dubber/internal/services/pyannote"
	"dubber/internal/services/translation"
	"dubber/internal/services/tts"
	"dubber/internal/services/whisperx"
	"dubber/internal/services/ytdlp"
	"dubber/internal/synth"
	"dubber/internal/translate"
	"dubber/internal/voicematch"
	"dubber/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the dubbing daemon and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	gin.SetMode(gin.ReleaseMode)

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.StateDir, "dubber.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	var sinks []events.Sink
	var forwarder *events.Forwarder
	if cfg.Events.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPQueue)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("connect event broker: %w", err)
		}
		defer publisher.Close()
		forwarder = events.NewForwarder(cfg.Events.BufferSize, publisher.Publish, logging.NewComponentLogger(logger, "events"))
		sinks = append(sinks, forwarder)
	}
	bus := events.NewBus(cfg.Events.BufferSize, sinks...)
	repo := jobs.NewRepository(store, jobs.WithObserver(bus.ObserveJob))

	manager := workflow.NewManager(cfg, repo, logger, workflow.WithNotifier(notifications.NewService(cfg)))
	catalog, err := registerStages(manager, cfg, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	daemonOpts := []daemon.Option{daemon.WithCatalog(catalog)}
	if forwarder != nil {
		daemonOpts = append(daemonOpts, daemon.WithForwarder(forwarder))
	}
	if cfg.Retention.Enabled {
		sweeper := cleanup.NewSweeper(repo, manager,
			time.Duration(cfg.Retention.MaxAgeHours)*time.Hour,
			[]string{cfg.Paths.WorkDir},
			logging.NewComponentLogger(logger, "retention"),
		)
		daemonOpts = append(daemonOpts, daemon.WithSweeper(sweeper, time.Duration(cfg.Retention.SweepIntervalMinutes)*time.Minute))
	}

	d, err := daemon.New(cfg, store, repo, manager, bus, logger, daemonOpts...)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file, bind address and job database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("dubber daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// registerStages builds the capability clients and wires one handler per
// pipeline step. It returns the voice catalog for the API.
func registerStages(mgr *workflow.Manager, cfg *config.Config, logger *slog.Logger) (synth.Catalog, error) {
	policy := retryPolicy(cfg)
	media := ffmpeg.NewRunner(cfg)

	llmClient := llm.NewClient(llm.FromConfig(cfg.GetLLM()),
		llm.WithRetryPolicy(policy),
		llm.WithRetryObserver(retryObserver(logger, "llm")),
	)
	ttsClient := tts.NewClient(cfg.Synthesis, media,
		tts.WithRetryPolicy(policy),
		tts.WithRetryObserver(retryObserver(logger, "synthesis")),
	)
	overlay, err := tts.LoadOverlay(cfg.Synthesis.CatalogPath)
	if err != nil {
		return nil, err
	}
	catalog := tts.NewCatalog(ttsClient, overlay, cfg.Synthesis.DefaultVoices, logging.NewComponentLogger(logger, "catalog"))

	whisper := whisperx.NewService(whisperx.FromConfig(cfg), "", time.Duration(cfg.Transcription.TimeoutSeconds)*time.Second)
	diarizer := pyannote.New(pyannote.FromConfig(cfg), "")
	profiler := acoustic.NewProfiler(media, cfg.Media.ExtractSampleRate, cfg.Diarization.ProfileSegments, cfg.Diarization.ProfileMinSeconds, logger)
	matcher := voicematch.NewMatcher(voicematch.ThresholdsFromConfig(cfg.VoiceMatching), logger)
	translator := translate.NewTranslator(translation.NewBackend(llmClient, policy), translate.PolicyFromConfig(cfg), logger)
	synthesizer := synth.NewSynthesizer(ttsClient, media, synth.OptionsFromConfig(cfg), logger)
	synchronizer := synth.NewSynchronizer(media, cfg.Media.TrackSampleRate, logger)

	mgr.ConfigureStages(workflow.StageSet{
		Download:   pipeline.NewDownload(ytdlp.New(cfg.Download), media, logger),
		Extract:    pipeline.NewExtract(media, cfg.Media.ExtractSampleRate, logger),
		Diarize:    pipeline.NewDiarize(diarizer, profiler, logger),
		Transcribe: pipeline.NewTranscribe(whisper, logger),
		Align:      pipeline.NewAlign(logger),
		Voices:     pipeline.NewVoices(catalog, matcher, logger),
		Translate:  pipeline.NewTranslate(translator, logger),
		Synthesize: pipeline.NewSynthesize(synthesizer, logger),
		Sync:       pipeline.NewSync(synchronizer, media, pipeline.DurationTolerance, logger),
	})
	return catalog, nil
}

func retryPolicy(cfg *config.Config) services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts: cfg.Workflow.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
	}
}

func retryObserver(logger *slog.Logger, capability string) func(int, error) {
	return func(attempt int, err error) {
		metrics.RecordCapabilityRetry(capability)
		logger.Debug("retrying capability call",
			logging.String("capability", capability),
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "capability_retry"),
		)
	}
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(status.Name+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, result := range preflight.Failed(preflight.RunLocal(cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs needing this resource will fail"),
		)
	}
}
