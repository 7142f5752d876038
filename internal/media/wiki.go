package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAPIURL    = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent = "PapercastVideoMaker/1.0 (https://github.com/xxxsen/papercast)"
	maxImageBytes    = 32 << 20
	maxParallel      = 5
)

// ImageFetcher finds pictures for scenes. Both methods report "nothing found"
// as an empty result, never as an error.
type ImageFetcher interface {
	ArticleImages(ctx context.Context, dir, topic string, n int) []string
	SearchImage(ctx context.Context, dir, term string) string
}

type WikiClient struct {
	apiURL    string
	userAgent string
	client    *http.Client
}

type Option func(*WikiClient)

func WithAPIURL(u string) Option {
	return func(c *WikiClient) { c.apiURL = u }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *WikiClient) { c.client = client }
}

func WithUserAgent(ua string) Option {
	return func(c *WikiClient) { c.userAgent = ua }
}

func NewWikiClient(opts ...Option) *WikiClient {
	c := &WikiClient{
		apiURL:    defaultAPIURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string  `json:"title"`
			Missing   *string `json:"missing"`
			Images    []struct {
				Title string `json:"title"`
			} `json:"images"`
			ImageInfo []struct {
				URL string `json:"url"`
			} `json:"imageinfo"`
		} `json:"pages"`
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

func (c *WikiClient) query(ctx context.Context, params url.Values) (*queryResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wiki api status %d", resp.StatusCode)
	}
	out := &queryResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode wiki response: %w", err)
	}
	return out, nil
}

// pageImages returns the image titles of an article. ok is false when the page does not exist.
func (c *WikiClient) pageImages(ctx context.Context, title string, limit int) (titles []string, ok bool, err error) {
	resp, err := c.query(ctx, url.Values{
		"titles":  {title},
		"prop":    {"images"},
		"imlimit": {fmt.Sprint(limit)},
	})
	if err != nil {
		return nil, false, err
	}
	for _, page := range resp.Query.Pages {
		if page.Missing != nil {
			return nil, false, nil
		}
		for _, img := range page.Images {
			titles = append(titles, img.Title)
		}
		return titles, true, nil
	}
	return nil, false, nil
}

func (c *WikiClient) search(ctx context.Context, term string, limit int) ([]string, error) {
	resp, err := c.query(ctx, url.Values{
		"list":     {"search"},
		"srsearch": {term},
		"srlimit":  {fmt.Sprint(limit)},
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		out = append(out, s.Title)
	}
	return out, nil
}

func (c *WikiClient) imageURL(ctx context.Context, fileTitle string) (string, error) {
	resp, err := c.query(ctx, url.Values{
		"titles": {fileTitle},
		"prop":   {"imageinfo"},
		"iiprop": {"url"},
	})
	if err != nil {
		return "", err
	}
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) > 0 {
			return page.ImageInfo[0].URL, nil
		}
	}
	return "", fmt.Errorf("no image info for %s", fileTitle)
}

func isDecorative(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "logo") || strings.Contains(lower, "icon")
}

func isSVG(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".svg")
}

// ArticleImages downloads up to n pictures from the article named topic,
// falling back to the best search hit when no such article exists.
func (c *WikiClient) ArticleImages(ctx context.Context, dir, topic string, n int) []string {
	logger := logutil.GetLogger(ctx).With(zap.String("topic", topic))
	if n <= 0 || strings.TrimSpace(topic) == "" {
		return nil
	}
	titles, ok, err := c.pageImages(ctx, topic, 50)
	if err != nil {
		logger.Warn("query article images failed", zap.Error(err))
		return nil
	}
	if !ok {
		hits, err := c.search(ctx, topic, 1)
		if err != nil || len(hits) == 0 {
			logger.Warn("no related article found", zap.Error(err))
			return nil
		}
		logger.Info("using related article", zap.String("article", hits[0]))
		if titles, _, err = c.pageImages(ctx, hits[0], 50); err != nil {
			logger.Warn("query related article images failed", zap.Error(err))
			return nil
		}
	}
	picked := make([]string, 0, n)
	for _, t := range titles {
		if isDecorative(t) {
			continue
		}
		picked = append(picked, t)
		if len(picked) == n {
			break
		}
	}
	if len(picked) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("create image dir failed", zap.Error(err))
		return nil
	}
	results := make([]string, len(picked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(maxParallel, len(picked)))
	for i, title := range picked {
		g.Go(func() error {
			p, err := c.fetchFile(gctx, dir, title, false)
			if err != nil {
				logger.Warn("download image failed", zap.String("file", title), zap.Error(err))
				return nil
			}
			results[i] = p
			return nil
		})
	}
	_ = g.Wait()
	out := make([]string, 0, len(results))
	for _, p := range results {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SearchImage finds one picture for a free-text term, preferring raster files.
func (c *WikiClient) SearchImage(ctx context.Context, dir, term string) string {
	logger := logutil.GetLogger(ctx).With(zap.String("term", term))
	if strings.TrimSpace(term) == "" {
		return ""
	}
	hits, err := c.search(ctx, term, 3)
	if err != nil || len(hits) == 0 {
		logger.Info("no article for image term", zap.Error(err))
		return ""
	}
	titles, _, err := c.pageImages(ctx, hits[0], 10)
	if err != nil {
		logger.Warn("query article images failed", zap.Error(err))
		return ""
	}
	var raster, vector []string
	for _, t := range titles {
		if isDecorative(t) {
			continue
		}
		if isSVG(t) {
			vector = append(vector, t)
		} else {
			raster = append(raster, t)
		}
	}
	candidates := raster
	if len(candidates) == 0 {
		candidates = vector
	}
	if len(candidates) == 0 {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("create image dir failed", zap.Error(err))
		return ""
	}
	p, err := c.fetchFile(ctx, dir, candidates[0], true)
	if err != nil {
		logger.Warn("download image failed", zap.String("file", candidates[0]), zap.Error(err))
		return ""
	}
	return p
}

func (c *WikiClient) fetchFile(ctx context.Context, dir, fileTitle string, requireImageType bool) (string, error) {
	src, err := c.imageURL(ctx, fileTitle)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image status %d", resp.StatusCode)
	}
	if requireImageType && !strings.Contains(resp.Header.Get("Content-Type"), "image") {
		return "", fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", err
	}
	name := fileName(src)
	if isSVG(name) {
		data, err = SVGToPNG(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("convert svg: %w", err)
		}
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
	}
	if err := Verify(bytes.NewReader(data)); err != nil {
		return "", err
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func fileName(src string) string {
	name := src
	if u, err := url.Parse(src); err == nil {
		name = u.Path
	}
	name = strings.Trim(path.Base(name), "/")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "image"
	}
	return name
}
