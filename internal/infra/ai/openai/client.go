package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
)

const (
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 1000
)

type Client struct {
	*openai.Client
	Model string
}

// NewClient baseURL boleh kosong (pakai endpoint default OpenAI)
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// isReasoningModel o1/o3/o4/gpt-5 take MaxCompletionTokens and reject temperature
func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

func (c *Client) Complete(ctx context.Context, in ai.CompletionRequest) (string, error) {
	model := in.Model
	if model == "" {
		model = c.Model
	}
	if model == "" {
		model = defaultModel
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(in.Messages),
	}
	if in.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = in.Temperature
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion from %s: %w", model, ai.ErrUnavailable)
	}

	log.Debug().
		Str("model", model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion done")

	return resp.Choices[0].Message.Content, nil
}

func toMessages(msgs []ai.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := openai.ChatCompletionMessage{Role: string(m.Role)}
		if len(m.Images) == 0 {
			msg.Content = m.Text
			out = append(out, msg)
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(m.Images)+1)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Text,
		})
		for _, img := range m.Images {
			detail := openai.ImageURLDetailHigh
			switch img.Detail {
			case "low":
				detail = openai.ImageURLDetailLow
			case "auto":
				detail = openai.ImageURLDetailAuto
			}
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    img.DataURI(),
					Detail: detail,
				},
			})
		}
		msg.MultiContent = parts
		out = append(out, msg)
	}
	return out
}

// classify maps go-openai errors onto the ai error taxonomy
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.Message, statusErr(apiErr.HTTPStatusCode))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion request failed (%d): %w", reqErr.HTTPStatusCode, statusErr(reqErr.HTTPStatusCode))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("completion aborted: %w", err)
	}
	return fmt.Errorf("failed to create chat completion: %v: %w", err, ai.ErrUnavailable)
}

func statusErr(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ai.ErrRateLimited
	case code >= 400 && code < 500:
		return ai.ErrBadRequest
	default:
		return ai.ErrUnavailable
	}
}
