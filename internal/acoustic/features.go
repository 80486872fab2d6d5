// Package acoustic derives the per-speaker voice profile used for voice
// matching: pitch statistics, spectral centroid, loudness and a coarse
// timbre vector.
package acoustic

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Profile summarizes the acoustic character of one speaker.
type Profile struct {
	MeanPitch        float64   `json:"mean_pitch"`
	PitchStd         float64   `json:"pitch_std"`
	SpectralCentroid float64   `json:"spectral_centroid"`
	RMSEnergy        float64   `json:"rms_energy"`
	Timbre           []float64 `json:"timbre,omitempty"`
}

// Voiced reports whether any pitched frames contributed to the profile.
func (p Profile) Voiced() bool { return p.MeanPitch > 0 }

// Analysis parameters.
const (
	FrameSize     = 2048
	HopSize       = 512
	MinPitchHz    = 60.0
	MaxPitchHz    = 400.0
	TimbreBands   = 8
	silenceRMS    = 0.01
	voicingFactor = 0.3
	timbreMinHz   = 50.0
)

// Extract computes a Profile from mono samples in [-1, 1].
func Extract(samples []float64, sampleRate int) Profile {
	if len(samples) == 0 || sampleRate <= 0 {
		return Profile{}
	}

	frameSize := FrameSize
	if len(samples) < frameSize {
		frameSize = len(samples)
	}
	fft := fourier.NewFFT(frameSize)
	window := hann(frameSize)
	frame := make([]float64, frameSize)
	coeffs := make([]complex128, frameSize/2+1)

	var (
		pitches   []float64
		centroids []float64
		rmsValues []float64
		timbre    = make([]float64, TimbreBands)
		edges     = bandEdges(sampleRate)
	)

	for start := 0; start+frameSize <= len(samples); start += HopSize {
		raw := samples[start : start+frameSize]
		rms := math.Sqrt(floats.Dot(raw, raw) / float64(frameSize))
		rmsValues = append(rmsValues, rms)
		if rms < silenceRMS {
			continue
		}

		if pitch, ok := detectPitch(raw, sampleRate); ok {
			pitches = append(pitches, pitch)
		}

		floats.MulTo(frame, raw, window)
		coeffs = fft.Coefficients(coeffs, frame)
		var weighted, total float64
		for i, c := range coeffs {
			mag := cmplxAbs(c)
			freq := fft.Freq(i) * float64(sampleRate)
			weighted += freq * mag
			total += mag
			if band := bandIndex(edges, freq); band >= 0 {
				timbre[band] += mag * mag
			}
		}
		if total > 0 {
			centroids = append(centroids, weighted/total)
		}
	}

	profile := Profile{}
	if len(rmsValues) > 0 {
		profile.RMSEnergy = stat.Mean(rmsValues, nil)
	}
	if len(pitches) > 0 {
		profile.MeanPitch, profile.PitchStd = meanStd(pitches)
	}
	if len(centroids) > 0 {
		profile.SpectralCentroid = stat.Mean(centroids, nil)
	}
	if sum := floats.Sum(timbre); sum > 0 {
		floats.Scale(1/sum, timbre)
		profile.Timbre = timbre
	}
	return profile
}

// detectPitch finds the autocorrelation peak inside the speech pitch range.
func detectPitch(frame []float64, sampleRate int) (float64, bool) {
	minLag := int(float64(sampleRate) / MaxPitchHz)
	maxLag := int(float64(sampleRate) / MinPitchHz)
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if minLag < 1 || minLag >= maxLag {
		return 0, false
	}

	energy := floats.Dot(frame, frame)
	if energy == 0 {
		return 0, false
	}
	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := floats.Dot(frame[:len(frame)-lag], frame[lag:])
		if corr > bestCorr {
			bestLag, bestCorr = lag, corr
		}
	}
	if bestLag == 0 || bestCorr/energy < voicingFactor {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 1 {
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// bandEdges splits timbreMinHz..nyquist into log-spaced bands.
func bandEdges(sampleRate int) []float64 {
	nyquist := float64(sampleRate) / 2
	edges := make([]float64, TimbreBands+1)
	if nyquist <= timbreMinHz {
		for i := range edges {
			edges[i] = nyquist * float64(i) / TimbreBands
		}
		return edges
	}
	floats.LogSpan(edges, timbreMinHz, nyquist)
	return edges
}

func bandIndex(edges []float64, freq float64) int {
	if freq < edges[0] || freq > edges[len(edges)-1] {
		return -1
	}
	for i := 1; i < len(edges); i++ {
		if freq <= edges[i] {
			return i - 1
		}
	}
	return -1
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
