// Package pipeline composes classification, evidence lookup and persistence
// into the single analysis flow shared by every front end.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/persist"
)

// Classifier turns text into a validated classification.
type Classifier interface {
	Classify(ctx context.Context, text string) (*model.Classification, error)
}

// EvidenceFinder returns supporting legal texts for a category. It never
// fails; an unavailable service yields an empty slice.
type EvidenceFinder interface {
	Find(ctx context.Context, category string) []model.EvidenceItem
}

// Analyzer runs one analysis per call. It holds no per-request state and is
// safe for concurrent use.
type Analyzer struct {
	classifier Classifier
	evidence   EvidenceFinder
	sink       persist.Sink
	source     string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithEvidence enables the evidence lookup stage.
func WithEvidence(f EvidenceFinder) Option {
	return func(a *Analyzer) { a.evidence = f }
}

// WithSink enables persistence of completed analyses.
func WithSink(s persist.Sink) Option {
	return func(a *Analyzer) {
		if s != nil {
			a.sink = s
		}
	}
}

// New creates an Analyzer. source tags persisted entries with the front end
// that produced them.
func New(c Classifier, source string, opts ...Option) *Analyzer {
	a := &Analyzer{classifier: c, sink: persist.Noop{}, source: source}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze classifies text, attaches evidence for infractions and hands the
// result to the sink. Only classification errors are returned.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*model.Analysis, error) {
	log := zap.L().With(zap.String("source", a.source))
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		log.Debug("pipeline: rejected empty input")
		return nil, apperr.Newf(apperr.KindEmptyInput, "pipeline: analyze", "text is blank")
	}

	log.Debug("pipeline: classifying", zap.Int("chars", len(text)))
	c, err := a.classifier.Classify(ctx, text)
	if err != nil {
		log.Error("pipeline: classification failed",
			zap.String("kind", apperr.KindOf(err).String()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "pipeline: classify")
	}

	analysis := &model.Analysis{Classification: *c, Evidence: []model.EvidenceItem{}}
	if a.evidence != nil && !c.IsNeutral() {
		log.Debug("pipeline: looking up evidence", zap.String("category", c.Category))
		if items := a.evidence.Find(ctx, c.Category); len(items) > 0 {
			if len(items) > model.MaxEvidence {
				items = items[:model.MaxEvidence]
			}
			analysis.Evidence = items
		}
	}

	a.sink.Persist(ctx, model.Entry{Source: a.source, Analysis: *analysis})

	log.Info("pipeline: analysis complete",
		zap.String("category", analysis.Category),
		zap.Int("evidence", len(analysis.Evidence)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return analysis, nil
}
