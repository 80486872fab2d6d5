package jobs

// Band is the inclusive progress range owned by a status.
type Band struct {
	Floor int
	Ceil  int
}

// Progress bands per state. synchronizing tops out at 99 so only completed
// reports 100.
var (
	BandInitialized      = Band{0, 0}
	BandDownloading      = Band{0, 15}
	BandExtractingAudio  = Band{15, 20}
	BandDiarizing        = Band{20, 30}
	BandTranscribing     = Band{30, 40}
	BandTranslating      = Band{40, 60}
	BandGeneratingSpeech = Band{60, 85}
	BandSynchronizing    = Band{85, 99}
	BandCompleted        = Band{100, 100}
)

// Band returns the progress range for the status. failed has no band of its
// own; callers keep the last reported value.
func (s Status) Band() (Band, bool) {
	switch s {
	case StatusInitialized:
		return BandInitialized, true
	case StatusDownloading:
		return BandDownloading, true
	case StatusExtractingAudio:
		return BandExtractingAudio, true
	case StatusDiarizing:
		return BandDiarizing, true
	case StatusTranscribing:
		return BandTranscribing, true
	case StatusTranslating:
		return BandTranslating, true
	case StatusGeneratingSpeech:
		return BandGeneratingSpeech, true
	case StatusSynchronizing:
		return BandSynchronizing, true
	case StatusCompleted:
		return BandCompleted, true
	case StatusFailed:
		return Band{}, false
	default:
		return Band{}, false
	}
}

// At maps done/total completion within the band to a percentage.
func (b Band) At(done, total int) int {
	if total <= 0 || done <= 0 {
		return b.Floor
	}
	if done >= total {
		return b.Ceil
	}
	return b.Floor + (b.Ceil-b.Floor)*done/total
}
