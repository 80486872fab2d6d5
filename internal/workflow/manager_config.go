package workflow

import (
	"dubber/internal/jobs"
	"dubber/internal/stage"
)

// ConfigureStages registers the concrete step handlers in pipeline order.
// Every step is required; a nil handler fails jobs that reach it.
func (m *Manager) ConfigureStages(set StageSet) {
	steps := []struct {
		name    string
		handler stage.Handler
		status  jobs.Status
	}{
		{"download", set.Download, jobs.StatusDownloading},
		{"extract", set.Extract, jobs.StatusExtractingAudio},
		{"diarize", set.Diarize, jobs.StatusDiarizing},
		{"transcribe", set.Transcribe, jobs.StatusTranscribing},
		{"align", set.Align, jobs.StatusTranscribing},
		{"voices", set.Voices, jobs.StatusTranscribing},
		{"translate", set.Translate, jobs.StatusTranslating},
		{"synthesize", set.Synthesize, jobs.StatusGeneratingSpeech},
		{"sync", set.Sync, jobs.StatusSynchronizing},
	}
	stages := make([]pipelineStage, 0, len(steps))
	for _, s := range steps {
		stages = append(stages, pipelineStage{name: s.name, handler: s.handler, status: s.status})
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}
