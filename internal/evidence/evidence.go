// Package evidence looks up supporting legal texts for a classification.
package evidence

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/resilience"
	"github.com/indexlegal/honoris/pkg/lawcrawler"
)

// Lookup queries the law search service. Failures never reach the caller:
// they are logged and yield no evidence.
type Lookup struct {
	client  lawcrawler.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	max     int
}

// New creates a Lookup returning at most max items per call.
func New(client lawcrawler.Client, breaker *resilience.CircuitBreaker, timeout time.Duration, max int) *Lookup {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig("lawcrawler", 0, 0))
	}
	if max <= 0 || max > model.MaxEvidence {
		max = model.MaxEvidence
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Lookup{client: client, breaker: breaker, timeout: timeout, max: max}
}

// FromConfig builds a Lookup from config, or returns nil when the search
// service is disabled.
func FromConfig(cfg *config.Config) *Lookup {
	if !cfg.LawCrawler.Enabled || cfg.LawCrawler.BaseURL == "" {
		return nil
	}
	client := lawcrawler.NewClient(lawcrawler.WithBaseURL(cfg.LawCrawler.BaseURL))
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig(
		"lawcrawler", cfg.LawCrawler.BreakerThreshold, cfg.LawCrawler.BreakerResetSecs))
	return New(client, breaker, time.Duration(cfg.LawCrawler.TimeoutSecs)*time.Second, cfg.LawCrawler.MaxEvidence)
}

// Client exposes the underlying search client for the law detail proxy.
func (l *Lookup) Client() lawcrawler.Client {
	return l.client
}

// QueryToken reduces a category label to its first whitespace-delimited
// token. Multi-word labels rarely match the search index; a single keyword
// trades precision for recall.
func QueryToken(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Find returns up to the configured maximum of documents for category. It
// returns an empty, non-nil slice for the neutral category, blank labels and
// any lookup failure.
func (l *Lookup) Find(ctx context.Context, category string) []model.EvidenceItem {
	items := []model.EvidenceItem{}
	if model.IsNeutral(category) {
		return items
	}
	query := QueryToken(category)
	if query == "" {
		return items
	}

	resp, err := resilience.ExecuteVal(ctx, l.breaker, func(ctx context.Context) (*lawcrawler.SearchResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return l.client.Search(callCtx, query)
	})
	if err != nil {
		zap.L().Warn("evidence: lookup failed",
			zap.String("query", query),
			zap.Error(apperr.New(apperr.KindEvidenceLookupFailed, "evidence: find", err)),
		)
		return items
	}

	for _, r := range resp.Results {
		if len(items) == l.max {
			break
		}
		items = append(items, model.EvidenceItem(r))
	}
	zap.L().Debug("evidence: lookup complete",
		zap.String("query", query),
		zap.Int("found", len(resp.Results)),
		zap.Int("kept", len(items)),
	)
	return items
}
