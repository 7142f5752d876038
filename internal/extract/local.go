package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/xxxsen/papercast/internal/pkg/errors"
)

const defaultMaxPDFBytes = 64 << 20

type localConfig struct {
	TimeoutSec int   `json:"timeout_sec"`
	MaxBytes   int64 `json:"max_bytes"`
}

// localExtractor downloads the PDF and reads its text layer in-process.
type localExtractor struct {
	client   *http.Client
	maxBytes int64
}

func (l *localExtractor) Name() string {
	return "local"
}

func (l *localExtractor) Extract(ctx context.Context, pdfURL string) (string, error) {
	path, err := l.download(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(path)
	return extractFile(path)
}

func (l *localExtractor) download(ctx context.Context, pdfURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPDF, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download pdf: %v", errors.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download pdf: %s", errors.ErrUpstream, resp.Status)
	}
	tmp, err := os.CreateTemp("", "papercast-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, l.maxBytes+1))
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: download pdf: %v", errors.ErrUpstream, err)
	}
	if n > l.maxBytes {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: pdf larger than %d bytes", errors.ErrInvalidPDF, l.maxBytes)
	}
	return tmp.Name(), nil
}

func extractFile(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", errors.ErrInvalidPDF, err)
	}
	defer f.Close()

	var paragraphs []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		paragraphs = append(paragraphs, strings.Split(text, "\n")...)
	}
	return joinParagraphs(paragraphs), nil
}

func createLocalExtractor(args interface{}) (Extractor, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPDFBytes
	}
	return &localExtractor{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}, nil
}

func init() {
	Register("local", createLocalExtractor)
}
