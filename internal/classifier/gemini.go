package classifier

import (
	"context"
	"errors"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/prompt"
	"github.com/indexlegal/honoris/internal/resilience"
	"github.com/indexlegal/honoris/pkg/gemini"
)

type geminiBackend struct {
	client gemini.Client
	model  string
}

func (b *geminiBackend) name() string { return "gemini" }

func (b *geminiBackend) generate(ctx context.Context, tmpl prompt.Template, text string) (string, error) {
	const op = "classifier: gemini"

	req := gemini.GenerateContentRequest{
		Model:             b.model,
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: tmpl.System}}},
		Contents:          []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: text}}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   tmpl.ResponseSchema,
		},
		SafetySettings: gemini.PermissiveSafety(),
	}

	resp, err := b.client.GenerateContent(ctx, req)
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			detail := apiErr.Message
			if detail == "" {
				detail = truncate(apiErr.Body, 500)
			}
			return "", resilience.MarkTransient(&apperr.Error{
				Kind:   apperr.KindClassifierUnavailable,
				Op:     op,
				Status: apiErr.StatusCode,
				Detail: detail,
			}, apiErr.StatusCode)
		}
		return "", apperr.New(apperr.KindClassifierUnavailable, op, err)
	}

	if reason := resp.BlockReason(); reason != "" {
		return "", apperr.Newf(apperr.KindContentBlocked, op, "prompt blocked: %s", reason)
	}

	answer, ok := resp.Text()
	if !ok {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == "SAFETY" {
			return "", apperr.Newf(apperr.KindContentBlocked, op, "candidate blocked: SAFETY")
		}
		return "", apperr.Newf(apperr.KindMalformedModelOutput, op, "response has no candidate text")
	}

	logUsage(b.name(), b.model, int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	return answer, nil
}
