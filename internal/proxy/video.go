package proxy

import (
	"bytes"
	"context"
	"encoding/json"
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
	DefaultVideoTimeout = time.Hour
	maxVideoErrorBytes  = 64 << 10
)

var (
	ErrVideoTimeout     = errors.New("video service timed out")
	ErrVideoUnavailable = errors.New("no response from video service")
	ErrBadMediaPath     = fmt.Errorf("%w: bad media path", appErr.ErrInvalid)
)

// VideoError is a non-2xx answer from the video service. Body holds the
// decoded JSON when it parses, the raw text otherwise.
type VideoError struct {
	Status int
	Body   interface{}
}

func (e *VideoError) Error() string {
	return fmt.Sprintf("video service returned %d", e.Status)
}

// VideoProxy forwards generation requests and media downloads to the video service.
type VideoProxy struct {
	base   *url.URL
	client *http.Client
}

// NewVideoProxy targets the video service at baseURL. A nil client gets
// DefaultVideoTimeout, which must cover a full render.
func NewVideoProxy(baseURL string, client *http.Client) (*VideoProxy, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid video service url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultVideoTimeout}
	}
	return &VideoProxy{base: u, client: client}, nil
}

func (p *VideoProxy) endpoint(parts ...string) string {
	u := *p.base
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	u.Path = p.base.Path + "/" + strings.Join(parts, "/")
	u.RawPath = p.base.Path + "/" + strings.Join(escaped, "/")
	return u.String()
}

func (p *VideoProxy) do(req *http.Request) (*http.Response, error) {
	resp, err := p.client.Do(req)
	if err == nil {
		return resp, nil
	}
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return nil, ErrVideoTimeout
	}
	return nil, fmt.Errorf("%w: %v", ErrVideoUnavailable, err)
}

func readVideoError(resp *http.Response) *VideoError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxVideoErrorBytes))
	verr := &VideoError{Status: resp.StatusCode}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err == nil {
		verr.Body = decoded
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		verr.Body = text
	}
	return verr
}

// Generate posts body to /generate_video and returns the decoded answer with
// video_url moved onto publicBase, keeping the path.
func (p *VideoProxy) Generate(ctx context.Context, body []byte, publicBase string) (int, map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("generate_video"), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, nil, readVideoError(resp)
	}
	out := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, nil, fmt.Errorf("%w: decode video response: %v", appErr.ErrUpstream, err)
	}
	if raw, ok := out["video_url"].(string); ok && raw != "" {
		rewritten, err := RebaseURL(raw, publicBase)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: rewrite video url: %v", appErr.ErrUpstream, err)
		}
		out["video_url"] = rewritten
	}
	return resp.StatusCode, out, nil
}

// Media opens /media/videos/<quality>/<file> on the video service. The caller
// closes the response body.
func (p *VideoProxy) Media(ctx context.Context, quality, file string) (*http.Response, error) {
	for _, part := range []string{quality, file} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, "/\\") {
			return nil, ErrBadMediaPath
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("media", "videos", quality, file), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readVideoError(resp)
	}
	return resp, nil
}

// RebaseURL keeps the path and query of raw and swaps in the scheme and host of base.
func RebaseURL(raw, base string) (string, error) {
	src, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	dst, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	src.Scheme = dst.Scheme
	src.Host = dst.Host
	src.User = nil
	return src.String(), nil
}
