// Package classifier sends text to an LLM with a legal taxonomy prompt and
// turns the answer into a validated classification.
package classifier

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/cost"
	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/prompt"
	"github.com/indexlegal/honoris/internal/resilience"
	"github.com/indexlegal/honoris/pkg/anthropic"
	"github.com/indexlegal/honoris/pkg/gemini"
)

var prices = cost.NewCalculator(cost.DefaultRates())

// logUsage records token counts and the estimated price of one model call.
func logUsage(provider, model string, input, output int64) {
	zap.L().Debug("classifier: usage",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Float64("estimated_cost_usd", prices.Tokens(provider, model, input, output)),
	)
}

// backend performs one model call and returns the raw answer text.
type backend interface {
	name() string
	generate(ctx context.Context, tmpl prompt.Template, text string) (string, error)
}

// Classifier classifies free text against the configured prompt template.
// It is safe for concurrent use.
type Classifier struct {
	backend  backend
	template prompt.Template
	timeout  time.Duration
	retry    resilience.RetryConfig
	limiter  *rate.Limiter
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout bounds each model call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxAttempts allows retrying transient upstream failures.
func WithMaxAttempts(n int) Option {
	return func(c *Classifier) {
		c.retry = resilience.Attempts(n)
	}
}

// WithRateLimit caps outgoing model calls per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Classifier) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func newClassifier(b backend, tmpl prompt.Template, opts ...Option) *Classifier {
	c := &Classifier{
		backend:  b,
		template: tmpl,
		timeout:  30 * time.Second,
		retry:    resilience.Attempts(1),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.OnRetry = resilience.RetryLogger(b.name())
	return c
}

// NewGemini creates a Classifier backed by the Gemini generateContent API.
func NewGemini(client gemini.Client, modelName string, tmpl prompt.Template, opts ...Option) *Classifier {
	return newClassifier(&geminiBackend{client: client, model: modelName}, tmpl, opts...)
}

// NewAnthropic creates a Classifier backed by the Anthropic Messages API.
func NewAnthropic(client anthropic.Client, modelName string, maxTokens int64, tmpl prompt.Template, opts ...Option) *Classifier {
	return newClassifier(&anthropicBackend{client: client, model: modelName, maxTokens: maxTokens}, tmpl, opts...)
}

// FromConfig builds the Classifier for the configured provider.
func FromConfig(cfg *config.Config) (*Classifier, error) {
	tmpl, err := prompt.Resolve(cfg.Classifier.Prompt, cfg.Classifier.PromptFile)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithTimeout(time.Duration(cfg.Classifier.TimeoutSecs) * time.Second),
		WithMaxAttempts(cfg.Classifier.MaxAttempts),
		WithRateLimit(cfg.Classifier.RateLimitRPS),
	}

	switch cfg.Classifier.Provider {
	case "anthropic":
		client := anthropic.NewClient(cfg.Anthropic.Key)
		return NewAnthropic(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, tmpl, opts...), nil
	case "gemini", "":
		client := gemini.NewClient(cfg.Gemini.Key,
			gemini.WithBaseURL(cfg.Gemini.BaseURL),
			gemini.WithModel(cfg.Gemini.Model),
		)
		return NewGemini(client, cfg.Gemini.Model, tmpl, opts...), nil
	default:
		return nil, eris.Errorf("classifier: unsupported provider %q", cfg.Classifier.Provider)
	}
}

// Template returns the prompt template in use.
func (c *Classifier) Template() prompt.Template {
	return c.template
}

// Classify returns a complete classification of text, or an *apperr.Error of
// kind EmptyInput, ClassifierUnavailable, ContentBlocked or
// MalformedModelOutput.
func (c *Classifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Newf(apperr.KindEmptyInput, "classifier: classify", "input text is blank")
	}

	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", apperr.New(apperr.KindClassifierUnavailable, "classifier: rate limit", err)
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.backend.generate(callCtx, c.template, text)
	})
	if err != nil {
		return nil, err
	}

	result, err := Parse(raw, text)
	if err != nil {
		zap.L().Warn("classifier: unusable model answer",
			zap.String("provider", c.backend.name()),
			zap.String("answer", truncate(raw, 500)),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
