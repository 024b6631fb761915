// Package llm wraps an OpenAI-compatible endpoint (OpenAI, Ollama,
// llama.cpp server) for chat completion and audio transcription.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

func newClient(baseURL, apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Chat generates answers from prompts.
type Chat struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
}

// NewChat creates a chat client. system may be empty.
func NewChat(baseURL, apiKey, model, system string) *Chat {
	return &Chat{
		client:      newClient(baseURL, apiKey),
		model:       model,
		system:      system,
		temperature: 0.3,
	}
}

// Complete sends the prompt and returns the model's reply.
func (c *Chat) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if c.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcriber converts audio/video files to text via a Whisper-style API.
type Transcriber struct {
	client *openai.Client
	model  string
}

// NewTranscriber creates a transcription client. model defaults to whisper-1.
func NewTranscriber(baseURL, apiKey, model string) *Transcriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: newClient(baseURL, apiKey), model: model}
}

// Transcribe returns the spoken text of the media file at path.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("llm: transcribe %s: %w", path, err)
	}
	return resp.Text, nil
}
