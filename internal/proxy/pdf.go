package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

const (
	pdfUserAgent = "Papercast/1.0 (https://github.com/xxxsen/papercast)"
	maxPDFBytes  = 50 << 20
)

var (
	ErrMissingURL       = fmt.Errorf("%w: pdf url is required", appErr.ErrInvalid)
	ErrDomainNotAllowed = errors.New("invalid url or domain not allowed")
	ErrNotPDF           = errors.New("retrieved content is not a pdf")
	ErrTimeout          = errors.New("pdf request timed out")
)

var defaultAllowedHosts = []string{"arxiv.org", "papers.ssrn.com"}

// RemoteError carries a non-200 status from the origin server.
type RemoteError struct {
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote server returned %d", e.Status)
}

type PDFProxy struct {
	allowed map[string]struct{}
	client  *http.Client
}

// NewPDFProxy fetches PDFs from the given hosts only; nil hosts means arxiv.org and papers.ssrn.com.
func NewPDFProxy(hosts []string, client *http.Client) *PDFProxy {
	if len(hosts) == 0 {
		hosts = defaultAllowedHosts
	}
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PDFProxy{allowed: allowed, client: client}
}

// SecureURL checks the host allowlist and upgrades http to https.
func (p *PDFProxy) SecureURL(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrDomainNotAllowed
	}
	if _, ok := p.allowed[strings.ToLower(u.Hostname())]; !ok {
		return "", ErrDomainNotAllowed
	}
	u.Scheme = "https"
	return u.String(), nil
}

// Fetch opens the remote PDF. The caller closes the body.
func (p *PDFProxy) Fetch(ctx context.Context, raw string) (io.ReadCloser, error) {
	target, err := p.SecureURL(raw)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", pdfUserAgent)
	req.Header.Set("Accept", "application/pdf")
	resp, err := p.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: fetch pdf: %v", appErr.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &RemoteError{Status: resp.StatusCode}
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/pdf") {
		resp.Body.Close()
		return nil, ErrNotPDF
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxPDFBytes), resp.Body}, nil
}
