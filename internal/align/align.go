// Package align attributes transcript segments to diarized speakers.
package align

import (
	"math"
	"sort"
	"strings"

	"dubber/internal/dubbing"
)

// MinSegmentDuration is the shortest segment kept after same-speaker overlap
// is trimmed. Shorter remainders are folded into the previous segment.
const MinSegmentDuration = 0.05

const overlapEpsilon = 1e-9

// Result is the aligned segment list and the induced speaker set.
type Result struct {
	Segments []dubbing.Segment
	Speakers []dubbing.Speaker
	// Dropped counts transcript segments discarded for empty text or
	// non-positive duration.
	Dropped int
	// Folded counts segments merged into a predecessor after trimming.
	Folded int
	// Unattributed counts segments that overlapped no interval.
	Unattributed int
}

// SpeakerIDs returns the ordered speaker labels of the result.
func (r Result) SpeakerIDs() []string {
	ids := make([]string, len(r.Speakers))
	for i, speaker := range r.Speakers {
		ids[i] = speaker.ID
	}
	return ids
}

type candidate struct {
	overlap  float64
	distance float64
}

// Align assigns each transcript segment to the speaker whose diarization
// intervals overlap it most. Adjacent segments of the same speaker stay
// separate.
func Align(intervals []dubbing.Interval, transcript []dubbing.TranscriptSegment) Result {
	var result Result
	segments := make([]dubbing.Segment, 0, len(transcript))

	for _, ts := range transcript {
		text := strings.TrimSpace(ts.Text)
		if text == "" || ts.End <= ts.Start {
			result.Dropped++
			continue
		}
		speaker, ok := attribute(intervals, ts.Start, ts.End)
		if !ok {
			speaker = dubbing.UnknownSpeakerID
			result.Unattributed++
		}
		segments = append(segments, dubbing.Segment{
			SpeakerID:  speaker,
			Start:      ts.Start,
			End:        ts.End,
			SourceText: text,
		})
	}

	dubbing.SortByStart(segments)
	segments, result.Folded = resolveOverlap(segments)
	dubbing.SortByStart(segments)

	result.Segments = segments
	result.Speakers = speakers(segments)
	return result
}

// attribute sums the overlap per speaker label and picks the largest. Ties
// go to the speaker owning the overlapping interval nearest the segment
// midpoint, then to the smaller label.
func attribute(intervals []dubbing.Interval, start, end float64) (string, bool) {
	mid := (start + end) / 2
	scores := make(map[string]*candidate)
	for _, iv := range intervals {
		overlap := math.Min(end, iv.End) - math.Max(start, iv.Start)
		if overlap <= 0 {
			continue
		}
		distance := math.Abs((iv.Start+iv.End)/2 - mid)
		c, ok := scores[iv.Speaker]
		if !ok {
			scores[iv.Speaker] = &candidate{overlap: overlap, distance: distance}
			continue
		}
		c.overlap += overlap
		c.distance = math.Min(c.distance, distance)
	}
	if len(scores) == 0 {
		return "", false
	}

	labels := make([]string, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, label := range labels[1:] {
		c, b := scores[label], scores[best]
		switch {
		case c.overlap > b.overlap+overlapEpsilon:
			best = label
		case math.Abs(c.overlap-b.overlap) <= overlapEpsilon && c.distance < b.distance-overlapEpsilon:
			best = label
		}
	}
	return best, true
}

// resolveOverlap trims same-speaker overlap by moving the later segment's
// start to the earlier segment's end. Input must be sorted by start.
func resolveOverlap(segments []dubbing.Segment) ([]dubbing.Segment, int) {
	out := make([]dubbing.Segment, 0, len(segments))
	last := make(map[string]int)
	folded := 0
	for _, seg := range segments {
		prevIdx, ok := last[seg.SpeakerID]
		if ok && seg.Start < out[prevIdx].End {
			prev := &out[prevIdx]
			seg.Start = prev.End
			if seg.End-seg.Start < MinSegmentDuration {
				prev.SourceText = prev.SourceText + " " + seg.SourceText
				prev.End = math.Max(prev.End, seg.End)
				folded++
				continue
			}
		}
		out = append(out, seg)
		last[seg.SpeakerID] = len(out) - 1
	}
	return out, folded
}

func speakers(segments []dubbing.Segment) []dubbing.Speaker {
	totals := make(map[string]float64)
	for _, seg := range segments {
		totals[seg.SpeakerID] += seg.Duration()
	}
	out := make([]dubbing.Speaker, 0, len(totals))
	for id, total := range totals {
		out = append(out, dubbing.Speaker{ID: id, TotalDuration: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
