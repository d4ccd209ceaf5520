package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"preface-cli/internal/config"
	"preface-cli/internal/logger"
)

// OpenAIUpstream generates through an OpenAI-compatible chat completion
// stream. Each received delta is written as one chat-delta frame, so the
// transcoder forwards it unchanged.
type OpenAIUpstream struct {
	client *openai.Client
	model  string
}

func NewOpenAIUpstream(cfg config.UpstreamConfig) *OpenAIUpstream {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIUpstream{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (u *OpenAIUpstream) Open(ctx context.Context, openid, content string) (io.ReadCloser, error) {
	stream, err := u.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: u.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		User:   openid,
		Stream: true,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w with status %d: %s", ErrUpstreamStatus, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("creating chat stream: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				pw.Close()
				return
			}
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if _, err := pw.Write(deltaFrame(resp.ID, choice.Delta.Content, nil)); err != nil {
					logger.Debugf("openai upstream: reader closed: %v", err)
					return
				}
			}
		}
	}()
	return pr, nil
}
