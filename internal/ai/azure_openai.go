package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const defaultAzureAPIVersion = "2024-05-01-preview"

type azureOpenAIConfig struct {
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key"`
	APIVersion string `json:"api_version"`
}

// azureOpenAIProvider addresses models by deployment name, so the model argument is the deployment.
type azureOpenAIProvider struct {
	endpoint   string
	apiKey     string
	apiVersion string
}

func (p *azureOpenAIProvider) Name() string {
	return "azure_openai"
}

func (p *azureOpenAIProvider) deploymentURL(deployment string, op string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		strings.TrimRight(p.endpoint, "/"), url.PathEscape(deployment), op, url.QueryEscape(p.apiVersion))
}

func (p *azureOpenAIProvider) Chat(ctx context.Context, model string, req *ChatRequest) (string, error) {
	if p.apiKey == "" || p.endpoint == "" {
		return "", ErrUnavailable
	}
	body := buildChatCompletion("", req)
	var out chatCompletionResponse
	headers := map[string]string{"api-key": p.apiKey}
	if err := postJSON(ctx, nil, p.Name(), p.deploymentURL(model, "chat/completions"), headers, body, &out); err != nil {
		return "", err
	}
	return firstChoice(p.Name(), &out)
}

func (p *azureOpenAIProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	if p.apiKey == "" || p.endpoint == "" {
		return nil, ErrUnavailable
	}
	var out embeddingResponse
	headers := map[string]string{"api-key": p.apiKey}
	if err := postJSON(ctx, nil, p.Name(), p.deploymentURL(model, "embeddings"), headers, embeddingRequest{Input: text}, &out); err != nil {
		return nil, err
	}
	return firstEmbedding(p.Name(), &out)
}

func newAzureOpenAIProvider(args interface{}) (*azureOpenAIProvider, error) {
	cfg := &azureOpenAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAzureAPIVersion
	}
	return &azureOpenAIProvider{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiVersion: version,
	}, nil
}

func init() {
	Register("azure_openai", func(args interface{}) (IChatProvider, error) {
		return newAzureOpenAIProvider(args)
	})
	RegisterEmbed("azure_openai", func(args interface{}) (IEmbedProvider, error) {
		return newAzureOpenAIProvider(args)
	})
}
