package ai

import (
	"context"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *openAIProvider) Chat(ctx context.Context, model string, req *ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	var out chatCompletionResponse
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	if err := postJSON(ctx, nil, p.Name(), endpoint, p.headers(), buildChatCompletion(model, req), &out); err != nil {
		return "", err
	}
	return firstChoice(p.Name(), &out)
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	var out embeddingResponse
	endpoint := strings.TrimRight(p.baseURL, "/") + "/embeddings"
	if err := postJSON(ctx, nil, p.Name(), endpoint, p.headers(), embeddingRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	return firstEmbedding(p.Name(), &out)
}

func newOpenAIProvider(args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
	}, nil
}

func init() {
	Register("openai", func(args interface{}) (IChatProvider, error) {
		return newOpenAIProvider(args)
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		return newOpenAIProvider(args)
	})
}
