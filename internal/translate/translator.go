// Package translate fits translated text into the time each segment
// originally occupied by budgeting words per second of speech.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// Request is one translation call. WordBudget is the upper bound the
// backend is instructed to respect.
type Request struct {
	Text       string
	Source     string
	Target     string
	WordBudget int
}

// Backend performs a single translation.
type Backend interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// ProgressFunc receives done/total segment counts.
type ProgressFunc func(done, total int)

// Policy holds the word budget rules.
type Policy struct {
	WordsPerSecond   float64
	LanguageRates    map[string]float64
	OverageTolerance float64
	TightenFactor    float64
	TightenRetries   int
	Workers          int
}

// PolicyFromConfig reads the translation and workflow sections.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		WordsPerSecond:   cfg.Translation.WordsPerSecond,
		LanguageRates:    cfg.Translation.LanguageRates,
		OverageTolerance: cfg.Translation.OverageTolerance,
		TightenFactor:    cfg.Translation.TightenFactor,
		TightenRetries:   cfg.Translation.TightenRetries,
		Workers:          cfg.Workflow.SegmentWorkers,
	}
}

// Rate returns the speaking rate for language.
func (p Policy) Rate(language string) float64 {
	if rate, ok := p.LanguageRates[dubbing.PrimarySubtag(language)]; ok && rate > 0 {
		return rate
	}
	if rate, ok := p.LanguageRates[strings.ToLower(language)]; ok && rate > 0 {
		return rate
	}
	return p.WordsPerSecond
}

// Budget returns max(1, floor(duration*rate)).
func Budget(durationSeconds, wordsPerSecond float64) int {
	return max(1, int(math.Floor(durationSeconds*wordsPerSecond)))
}

// Tighten shrinks a budget by factor, never below one word.
func Tighten(budget int, factor float64) int {
	return max(1, int(math.Floor(float64(budget)*factor)))
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Translator runs segment translations through a bounded pool.
type Translator struct {
	backend Backend
	policy  Policy
	logger  *slog.Logger
}

// NewTranslator constructs a Translator.
func NewTranslator(backend Backend, policy Policy, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if policy.Workers <= 0 {
		policy.Workers = 1
	}
	return &Translator{backend: backend, policy: policy, logger: logger}
}

// Backend returns the translation backend.
func (t *Translator) Backend() Backend { return t.backend }

// TranslateSegments fills TranslatedText, WordBudget, OverBudget and
// TranslationAttempts on every segment in place.
func (t *Translator) TranslateSegments(ctx context.Context, segments []dubbing.Segment, source, target string, progress ProgressFunc) error {
	total := len(segments)
	rate := t.policy.Rate(target)

	var (
		mu   sync.Mutex
		done int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(t.policy.Workers)
	for i := range segments {
		seg := &segments[i]
		group.Go(func() error {
			if err := t.translateOne(groupCtx, seg, source, target, rate); err != nil {
				return err
			}
			if progress != nil {
				mu.Lock()
				done++
				progress(done, total)
				mu.Unlock()
			}
			return nil
		})
	}
	return group.Wait()
}

func (t *Translator) translateOne(ctx context.Context, seg *dubbing.Segment, source, target string, rate float64) error {
	budget := Budget(seg.Duration(), rate)
	seg.WordBudget = budget
	seg.OverBudget = false
	seg.TranslationAttempts = 0

	requested := budget
	for attempt := 0; attempt <= t.policy.TightenRetries; attempt++ {
		text, err := t.backend.Translate(ctx, Request{
			Text:       seg.SourceText,
			Source:     source,
			Target:     target,
			WordBudget: requested,
		})
		seg.TranslationAttempts++
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, services.ErrTranslation) {
				return err
			}
			return services.Wrap(services.ErrTranslation, "translation", "translate segment",
				fmt.Sprintf("segment %d", seg.Index), err)
		}
		seg.TranslatedText = strings.TrimSpace(text)

		words := WordCount(seg.TranslatedText)
		if !t.overBudget(words, budget) {
			seg.OverBudget = false
			return nil
		}
		seg.OverBudget = true
		if attempt < t.policy.TightenRetries {
			requested = Tighten(requested, t.policy.TightenFactor)
			logging.FromContext(ctx, t.logger).Debug("translation over budget, tightening",
				logging.Int(logging.FieldSegment, seg.Index),
				logging.Int("words", words),
				logging.Int("budget", budget),
				logging.Int("tightened_budget", requested),
			)
		}
	}

	logging.WarnWithContext(logging.FromContext(ctx, t.logger), "translation accepted over budget", "translation_over_budget",
		logging.Int(logging.FieldSegment, seg.Index),
		logging.Int("words", WordCount(seg.TranslatedText)),
		logging.Int("budget", budget),
		logging.String(logging.FieldImpact, "synthesis speed correction absorbs the overage"),
	)
	return nil
}

// overBudget applies the tolerance to the original budget.
func (t *Translator) overBudget(words, budget int) bool {
	return float64(words) > float64(budget)*(1+t.policy.OverageTolerance)
}
