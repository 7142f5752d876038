package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/papercast/internal/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultDocIntelAPIVersion = "2023-07-31"
	defaultPollInterval       = 2 * time.Second
	defaultAnalyzeTimeout     = 5 * time.Minute
)

type azureConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	APIVersion     string `json:"api_version"`
	PollIntervalMs int    `json:"poll_interval_ms"`
	TimeoutSec     int    `json:"timeout_sec"`
}

type azureExtractor struct {
	endpoint     string
	apiKey       string
	apiVersion   string
	pollInterval time.Duration
	timeout      time.Duration
	client       *http.Client
}

type analyzeResponse struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Paragraphs []struct {
			Content string `json:"content"`
		} `json:"paragraphs"`
	} `json:"analyzeResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *azureExtractor) Name() string {
	return "azure"
}

func (a *azureExtractor) Extract(ctx context.Context, pdfURL string) (string, error) {
	if a.endpoint == "" || a.apiKey == "" {
		return "", fmt.Errorf("%w: document intelligence credentials missing", errors.ErrUpstream)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opURL, err := a.submit(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	logutil.GetLogger(ctx).Debug("document analysis submitted", zap.String("pdf_url", pdfURL))
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		res, err := a.poll(ctx, opURL)
		if err != nil {
			return "", err
		}
		switch strings.ToLower(res.Status) {
		case "succeeded":
			paragraphs := make([]string, 0, len(res.AnalyzeResult.Paragraphs))
			for _, p := range res.AnalyzeResult.Paragraphs {
				paragraphs = append(paragraphs, p.Content)
			}
			return joinParagraphs(paragraphs), nil
		case "failed":
			msg := "analysis failed"
			if res.Error != nil {
				msg = res.Error.Code + ": " + res.Error.Message
			}
			return "", fmt.Errorf("%w: document intelligence: %s", errors.ErrUpstream, msg)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: document intelligence: %v", errors.ErrUpstream, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *azureExtractor) submit(ctx context.Context, pdfURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/formrecognizer/documentModels/prebuilt-read:analyze?api-version=%s",
		strings.TrimRight(a.endpoint, "/"), a.apiVersion)
	body, err := json.Marshal(map[string]string{"urlSource": pdfURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: document intelligence submit: %v", errors.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: document intelligence submit: %s: %s", errors.ErrUpstream, resp.Status, strings.TrimSpace(string(raw)))
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("%w: document intelligence returned no operation location", errors.ErrUpstream)
	}
	return opURL, nil
}

func (a *azureExtractor) poll(ctx context.Context, opURL string) (*analyzeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: document intelligence poll: %v", errors.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: document intelligence poll: %s: %s", errors.ErrUpstream, resp.Status, strings.TrimSpace(string(raw)))
	}
	out := &analyzeResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("%w: decode analyze result: %v", errors.ErrUpstream, err)
	}
	return out, nil
}

func createAzureExtractor(args interface{}) (Extractor, error) {
	cfg := &azureConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	ex := &azureExtractor{
		endpoint:     strings.TrimSpace(cfg.Endpoint),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiVersion:   strings.TrimSpace(cfg.APIVersion),
		pollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	if ex.apiVersion == "" {
		ex.apiVersion = defaultDocIntelAPIVersion
	}
	if ex.pollInterval <= 0 {
		ex.pollInterval = defaultPollInterval
	}
	if ex.timeout <= 0 {
		ex.timeout = defaultAnalyzeTimeout
	}
	return ex, nil
}

func init() {
	Register("azure", createAzureExtractor)
}
