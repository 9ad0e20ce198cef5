package classifier

import (
	"context"
	"errors"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/prompt"
	"github.com/indexlegal/honoris/internal/resilience"
	"github.com/indexlegal/honoris/pkg/anthropic"
)

type anthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func (b *anthropicBackend) name() string { return "anthropic" }

func (b *anthropicBackend) generate(ctx context.Context, tmpl prompt.Template, text string) (string, error) {
	const op = "classifier: anthropic"

	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		System:    tmpl.System,
		Messages:  []anthropic.Message{{Role: "user", Content: text}},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return "", resilience.MarkTransient(&apperr.Error{
				Kind:   apperr.KindClassifierUnavailable,
				Op:     op,
				Status: apiErr.StatusCode,
				Detail: truncate(apiErr.Body, 500),
			}, apiErr.StatusCode)
		}
		return "", apperr.New(apperr.KindClassifierUnavailable, op, err)
	}

	logUsage(b.name(), b.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if resp.StopReason == anthropic.StopReasonRefusal {
		return "", apperr.Newf(apperr.KindContentBlocked, op, "model refused: %s", resp.StopReason)
	}
	answer := resp.Text()
	if answer == "" {
		return "", apperr.Newf(apperr.KindMalformedModelOutput, op, "response has no text content")
	}
	return answer, nil
}
