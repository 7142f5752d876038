package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

func TestSearchQueryNormalize(t *testing.T) {
	q := SearchQuery{Query: "llm", Page: -3, PerPage: 500}
	require.NoError(t, q.Normalize())
	require.Equal(t, 1, q.Page)
	require.Equal(t, 100, q.PerPage)
	require.Equal(t, "relevance", q.Sort)

	q = SearchQuery{Query: "llm", Sort: "citations"}
	require.True(t, appErr.IsInvalid(q.Normalize()))
	q = SearchQuery{}
	require.True(t, appErr.IsInvalid(q.Normalize()))
}

func TestArxivSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "all:attention", q.Get("search_query"))
		assert.Equal(t, "20", q.Get("start"))
		assert.Equal(t, "10", q.Get("max_results"))
		assert.Equal(t, "lastUpdatedDate", q.Get("sortBy"))
		_, _ = w.Write([]byte("<feed/>"))
	}))
	defer srv.Close()
	c := NewArxivClient(srv.URL, srv.Client())
	body, err := c.Search(context.Background(), SearchQuery{Query: "all:attention", Page: 3, Sort: "lastUpdatedDate"})
	require.NoError(t, err)
	require.Equal(t, "<feed/>", string(body))
}

func TestArxivByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_list") == "bad" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<feed>" + r.URL.Query().Get("id_list") + "</feed>"))
	}))
	defer srv.Close()
	c := NewArxivClient(srv.URL, srv.Client())
	body, err := c.ByID(context.Background(), "1706.03762")
	require.NoError(t, err)
	require.Equal(t, "<feed>1706.03762</feed>", string(body))

	_, err = c.ByID(context.Background(), "bad")
	require.ErrorIs(t, err, appErr.ErrUpstream)
	_, err = c.ByID(context.Background(), "")
	require.True(t, appErr.IsInvalid(err))
}

func TestSecureURL(t *testing.T) {
	p := NewPDFProxy(nil, nil)
	u, err := p.SecureURL("http://arxiv.org/pdf/1706.03762")
	require.NoError(t, err)
	require.Equal(t, "https://arxiv.org/pdf/1706.03762", u)

	_, err = p.SecureURL("https://evil.example.com/a.pdf")
	require.ErrorIs(t, err, ErrDomainNotAllowed)
	_, err = p.SecureURL("ftp://arxiv.org/a.pdf")
	require.ErrorIs(t, err, ErrDomainNotAllowed)
	_, err = p.SecureURL("")
	require.True(t, appErr.IsInvalid(err))
}

type rewriteTransport struct {
	target string
}

func (t rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r.URL.Scheme = "http"
	r.URL.Host = strings.TrimPrefix(t.target, "http://")
	return http.DefaultTransport.RoundTrip(r)
}

func TestPDFFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/ok.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html/>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	p := NewPDFProxy([]string{"arxiv.org"}, &http.Client{Transport: rewriteTransport{target: srv.URL}})

	rc, err := p.Fetch(context.Background(), "https://arxiv.org/ok.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "%PDF-1.7", string(data))

	_, err = p.Fetch(context.Background(), "https://arxiv.org/html")
	require.ErrorIs(t, err, ErrNotPDF)

	_, err = p.Fetch(context.Background(), "https://arxiv.org/missing")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusNotFound, remote.Status)
}

func TestNewVideoProxyRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "http://", "::"} {
		_, err := NewVideoProxy(raw, nil)
		require.Error(t, err, raw)
	}
	p, err := NewVideoProxy("http://10.0.0.5:3000/", nil)
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5:3000/media/videos/1080p60/a%20b.mp4", p.endpoint("media", "videos", "1080p60", "a b.mp4"))
}

func TestRebaseURL(t *testing.T) {
	out, err := RebaseURL("http://10.0.0.5:3000/media/videos/1080p60/intro.mp4?v=2", "https://papers.example.org")
	require.NoError(t, err)
	require.Equal(t, "https://papers.example.org/media/videos/1080p60/intro.mp4?v=2", out)
}

func TestVideoMediaRejectsBadPath(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()
	p, err := NewVideoProxy(srv.URL, srv.Client())
	require.NoError(t, err)
	for _, parts := range [][2]string{{"1080p60", ".."}, {"..", "a.mp4"}, {"1080p60", ""}, {"1080p60", `a\b.mp4`}} {
		_, err := p.Media(context.Background(), parts[0], parts[1])
		require.ErrorIs(t, err, ErrBadMediaPath)
		require.True(t, appErr.IsInvalid(err))
	}
	require.Equal(t, 0, calls)
}

func TestVideoGenerateNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()
	p, err := NewVideoProxy(srv.URL, srv.Client())
	require.NoError(t, err)
	_, _, err = p.Generate(context.Background(), []byte(`{}`), "http://localhost")
	var verr *VideoError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, http.StatusBadGateway, verr.Status)
	require.Equal(t, "upstream down", verr.Body)
}
