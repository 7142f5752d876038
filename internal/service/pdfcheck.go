package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
	"go.uber.org/zap"
)

const (
	pdfCheckTimeout  = 10 * time.Second
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// PDFValidator checks that a URL looks like a PDF and that the server agrees.
type PDFValidator struct {
	client *http.Client
}

func NewPDFValidator(client *http.Client) *PDFValidator {
	if client == nil {
		client = &http.Client{Timeout: pdfCheckTimeout}
	}
	return &PDFValidator{client: client}
}

func (v *PDFValidator) Validate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: malformed url", appErr.ErrInvalidPDF)
	}
	if !strings.HasSuffix(strings.ToLower(rawURL), ".pdf") && !strings.Contains(strings.ToLower(parsed.Path), "pdf") {
		return fmt.Errorf("%w: url does not reference a pdf", appErr.ErrInvalidPDF)
	}
	ctx, cancel := context.WithTimeout(ctx, pdfCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrInvalidPDF, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := v.client.Do(req)
	if err != nil {
		logutil.GetLogger(ctx).Warn("pdf url check failed", zap.String("url", rawURL), zap.Error(err))
		return fmt.Errorf("%w: %v", appErr.ErrInvalidPDF, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", appErr.ErrInvalidPDF, resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/pdf") && !strings.Contains(contentType, "octet-stream") {
		return fmt.Errorf("%w: content type %q", appErr.ErrInvalidPDF, contentType)
	}
	return nil
}
