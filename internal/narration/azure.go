package narration

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

const (
	azureOutputFormat = "riff-24khz-16bit-mono-pcm"
	defaultVoice      = "en-US-SteffanNeural"
	defaultStyle      = "newscast"
)

type azureConfig struct {
	APIKey   string `json:"api_key"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
	Voice    string `json:"voice"`
	Style    string `json:"style"`
}

type azureNarrator struct {
	endpoint string
	apiKey   string
	voice    string
	style    string
	client   *http.Client
}

func (a *azureNarrator) Name() string {
	return "azure"
}

func (a *azureNarrator) Synthesize(ctx context.Context, text, outPath string) (Clip, error) {
	if strings.TrimSpace(text) == "" {
		return Clip{}, fmt.Errorf("empty narration text")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewBufferString(a.ssml(text)))
	if err != nil {
		return Clip{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	req.Header.Set("User-Agent", "papercast")
	resp, err := a.client.Do(req)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: speech synthesis: %v", appErr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Clip{}, fmt.Errorf("%w: speech synthesis: %s: %s", appErr.ErrUpstream, resp.Status, strings.TrimSpace(string(raw)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: read speech audio: %v", appErr.ErrUpstream, err)
	}
	seconds, err := WAVSeconds(audio)
	if err != nil {
		return Clip{}, err
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return Clip{}, err
	}
	return Clip{Path: outPath, Seconds: seconds}, nil
}

func (a *azureNarrator) ssml(text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))
	body := escaped.String()
	if a.style != "" {
		body = fmt.Sprintf(`<mstts:express-as style="%s">%s</mstts:express-as>`, a.style, body)
	}
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="en-US"><voice name="%s">%s</voice></speak>`, a.voice, body)
}

func createAzureNarrator(args interface{}) (Narrator, error) {
	cfg := &azureConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	n := &azureNarrator{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		voice:    strings.TrimSpace(cfg.Voice),
		style:    strings.TrimSpace(cfg.Style),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
	if n.apiKey == "" {
		return nil, fmt.Errorf("azure speech api_key is required")
	}
	if n.endpoint == "" {
		region := strings.TrimSpace(cfg.Region)
		if region == "" {
			return nil, fmt.Errorf("azure speech region or endpoint is required")
		}
		n.endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}
	if n.voice == "" {
		n.voice = defaultVoice
	}
	if n.style == "" {
		n.style = defaultStyle
	}
	return n, nil
}

func init() {
	Register("azure", createAzureNarrator)
}
