package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/voxform/voxform/session"
)

// ProviderConfig holds the non-realtime provider settings
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

// Provider covers the non-realtime provider calls: synthesizing question
// prompts and summarizing finished transcripts
type Provider struct {
	client *openai.Client
	model  string
	voice  string
}

// NewProvider creates a provider client
func NewProvider(cfg ProviderConfig) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		voice:  cfg.Voice,
	}
}

// SynthesizeQuestion renders a question prompt as speech
func (p *Provider) SynthesizeQuestion(ctx context.Context, text string) ([]byte, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(p.voice),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return audio, nil
}

// SummarizeTranscript produces a short summary of a finished session's
// conversation for the durable record
func (p *Provider) SummarizeTranscript(ctx context.Context, turns []session.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Summarize this survey conversation in two or three sentences. Note any questions the respondent struggled with.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sb.String(),
			},
		},
		MaxTokens: 200,
	})
	if err != nil {
		return "", fmt.Errorf("summarize transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize transcript: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
