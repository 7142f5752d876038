package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papercast/internal/filestore"
	"github.com/xxxsen/papercast/internal/middleware"
	"github.com/xxxsen/papercast/internal/model"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
	"github.com/xxxsen/papercast/internal/proxy"
	"github.com/xxxsen/papercast/internal/render"
	"github.com/xxxsen/papercast/internal/service"
)

type fakePapers struct {
	chatErr     error
	questionErr error
	cached      map[string]*model.QuestionSet
	lastQ       service.QuestionRequest
}

func (f *fakePapers) Chat(ctx context.Context, pdfURL, title, question string) (*model.ChatAnswer, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &model.ChatAnswer{Answer: "42", Sources: []string{title}, DocID: service.DocID(pdfURL, title)}, nil
}

func (f *fakePapers) GenerateQuestions(ctx context.Context, req service.QuestionRequest) (*model.QuestionSet, error) {
	f.lastQ = req
	if f.questionErr != nil {
		return nil, f.questionErr
	}
	return &model.QuestionSet{Questions: []model.Question{{Question: "Q?", CorrectAnswer: "A"}}}, nil
}

func (f *fakePapers) CachedQuestions(ctx context.Context, docID string) (*model.QuestionSet, error) {
	if set, ok := f.cached[docID]; ok {
		return set, nil
	}
	return nil, appErr.ErrNotFound
}

type fakeArxiv struct{}

func (fakeArxiv) Search(ctx context.Context, q proxy.SearchQuery) ([]byte, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if q.Query == "down" {
		return nil, fmt.Errorf("%w: arxiv api status 503", appErr.ErrUpstream)
	}
	return []byte(fmt.Sprintf("<feed per=%q/>", fmt.Sprint(q.PerPage))), nil
}

func (fakeArxiv) ByID(ctx context.Context, idList string) ([]byte, error) {
	if idList == "" {
		return nil, proxy.ErrMissingIDList
	}
	return []byte("<feed/>"), nil
}

type fakePDFs struct{}

func (fakePDFs) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	switch rawURL {
	case "":
		return nil, proxy.ErrMissingURL
	case "https://arxiv.org/gone.pdf":
		return nil, &proxy.RemoteError{Status: http.StatusNotFound}
	case "https://arxiv.org/page":
		return nil, proxy.ErrNotPDF
	}
	if !strings.HasPrefix(rawURL, "https://arxiv.org/") {
		return nil, proxy.ErrDomainNotAllowed
	}
	return io.NopCloser(strings.NewReader("%PDF-1.7")), nil
}

func newPaperEngine(papers PaperAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.NotFound())
	RegisterPaperRoutes(&r.RouterGroup, PaperDeps{
		Papers:     NewPaperHandler(papers),
		Proxy:      NewProxyHandler(fakeArxiv{}, fakePDFs{}),
		ProxyRPS:   100,
		ProxyBurst: 100,
	})
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatMissingFields(t *testing.T) {
	r := newPaperEngine(&fakePapers{})
	rec := do(r, http.MethodPost, "/api/chat", `{"pdf_url":"https://a/x.pdf","title":"T"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Missing required fields (pdf_url, title, question)"}`, rec.Body.String())
}

func TestChatSuccess(t *testing.T) {
	r := newPaperEngine(&fakePapers{})
	rec := do(r, http.MethodPost, "/api/chat", `{"pdf_url":"https://a/x.pdf","title":"T","question":"why?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.ChatAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "42", got.Answer)
	require.Equal(t, []string{"T"}, got.Sources)
	require.Len(t, got.DocID, 64)
}

func TestChatUpstreamFailureIsBadRequest(t *testing.T) {
	r := newPaperEngine(&fakePapers{chatErr: fmt.Errorf("%w: search down", appErr.ErrUpstream)})
	rec := do(r, http.MethodPost, "/api/chat", `{"pdf_url":"https://a/x.pdf","title":"T","question":"why?"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "search down")
}

func TestGenerateQuestions(t *testing.T) {
	papers := &fakePapers{}
	r := newPaperEngine(papers)
	rec := do(r, http.MethodPost, "/api/generate-questions", `{"pdf_url":"https://a/x.pdf"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Missing required fields (pdf_url, title)"}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/api/generate-questions", `{"pdf_url":"https://a/x.pdf","title":"T","num_questions":3,"difficulty":"hard"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, papers.lastQ.NumQuestions)
	require.Equal(t, "hard", papers.lastQ.Difficulty)

	papers.questionErr = fmt.Errorf("%w: model timeout", appErr.ErrUpstream)
	rec = do(r, http.MethodPost, "/api/generate-questions", `{"pdf_url":"https://a/x.pdf","title":"T"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	papers.questionErr = fmt.Errorf("%w: not a pdf", appErr.ErrInvalidPDF)
	rec = do(r, http.MethodPost, "/api/generate-questions", `{"pdf_url":"https://a/x.pdf","title":"T"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCachedQuestions(t *testing.T) {
	r := newPaperEngine(&fakePapers{cached: map[string]*model.QuestionSet{"abc": {Questions: []model.Question{{Question: "Q"}}}}})
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/questions/abc", "").Code)
	require.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/questions/zzz", "").Code)
}

func TestPaperHealthAndNotFound(t *testing.T) {
	r := newPaperEngine(&fakePapers{})
	rec := do(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)
	require.Contains(t, rec.Body.String(), `"timestamp"`)

	rec = do(r, http.MethodGet, "/api/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Endpoint not found"}`, rec.Body.String())
}

func TestSearchProxy(t *testing.T) {
	r := newPaperEngine(&fakePapers{})
	rec := do(r, http.MethodGet, "/api/search?query=llm&perPage=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	require.Equal(t, `<feed per="100"/>`, rec.Body.String())

	require.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/search", "").Code)
	rec = do(r, http.MethodGet, "/api/search?query=llm&sort=stars", "")
	require.JSONEq(t, `{"error":"Invalid sort parameter"}`, rec.Body.String())
	rec = do(r, http.MethodGet, "/api/search?query=down", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Failed to fetch results")
}

func TestPaperByIDProxy(t *testing.T) {
	r := newPaperEngine(&fakePapers{})
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/arxiv/papers/byId?id_list=1706.03762", "").Code)
	rec := do(r, http.MethodGet, "/api/arxiv/papers/byId", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Missing id_list parameter"}`, rec.Body.String())
}

func TestPDFProxy(t *testing.T) {
	r := newPaperEngine(&fakePapers{})
	rec := do(r, http.MethodGet, "/api/getproxypdf?url=https://arxiv.org/pdf/1706.03762", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, `inline; filename="paper.pdf"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "%PDF-1.7", rec.Body.String())

	cases := []struct {
		url  string
		code int
	}{
		{"", http.StatusBadRequest},
		{"https://evil.example.com/x.pdf", http.StatusForbidden},
		{"https://arxiv.org/page", http.StatusBadRequest},
		{"https://arxiv.org/gone.pdf", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(r, http.MethodGet, "/api/getproxypdf?url="+tc.url, "")
		require.Equal(t, tc.code, rec.Code, tc.url)
	}
}

func TestProxyRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaperRoutes(&r.RouterGroup, PaperDeps{
		Papers:     NewPaperHandler(&fakePapers{}),
		Proxy:      NewProxyHandler(fakeArxiv{}, fakePDFs{}),
		ProxyRPS:   0.001,
		ProxyBurst: 1,
	})
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/search?query=a", "").Code)
	require.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/search?query=a", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/health", "").Code)
}

type fakeVideos struct {
	err  error
	last service.VideoRequest
}

func (f *fakeVideos) Create(ctx context.Context, req service.VideoRequest) (*service.VideoResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	name := service.OutputName(req.OutputName, time.Unix(1, 0))
	return &service.VideoResult{
		OutputName: name,
		VideoURL:   req.BaseURL + "media/videos/1080p60/" + name + ".mp4",
		Report: &render.Report{Scenes: []render.SceneResult{
			{Index: 0, Type: "title", Status: render.StatusRendered},
			{Index: 1, Type: "hologram", Status: render.StatusSkipped, Reason: "unknown scene type"},
		}},
	}, nil
}

func newVideoEngine(t *testing.T, videos VideoAPI) (*gin.Engine, string) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.NotFound())
	RegisterVideoRoutes(&r.RouterGroup, NewVideoHandler(videos, filestore.NewLocal(dir, "")))
	return r, dir
}

func TestGenerateVideo(t *testing.T) {
	videos := &fakeVideos{}
	r, _ := newVideoEngine(t, videos)

	rec := do(r, http.MethodPost, "/generate_video", `{"output_name":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Missing required parameter: topic"}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/generate_video", `{"topic":"Transformers","output_name":"intro","pdf_url":"https://arxiv.org/pdf/1.pdf","paper_title":"P","user_description":"d"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status   string        `json:"status"`
		VideoURL string        `json:"video_url"`
		Message  string        `json:"message"`
		Scenes   []sceneStatus `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "success", got.Status)
	require.Equal(t, "http://example.com/media/videos/1080p60/intro.mp4", got.VideoURL)
	require.Equal(t, "Video generated successfully", got.Message)
	require.Len(t, got.Scenes, 2)
	require.Equal(t, "skipped", got.Scenes[1].Status)
	require.Equal(t, "P", videos.last.PaperTitle)
	require.Equal(t, "d", videos.last.UserDescription)
}

func TestGenerateVideoFailure(t *testing.T) {
	r, _ := newVideoEngine(t, &fakeVideos{err: fmt.Errorf("%w: bad json", appErr.ErrStoryboardParse)})
	rec := do(r, http.MethodPost, "/generate_video", `{"topic":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "error", got["status"])
	require.Contains(t, got["message"], "bad json")
}

func TestMediaAndHealth(t *testing.T) {
	r, dir := newVideoEngine(t, &fakeVideos{})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.mp4"), []byte("0123456789"), 0o644))

	rec := do(r, http.MethodGet, "/media/videos/1080p60/intro.mp4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	require.Equal(t, "0123456789", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/media/videos/1080p60/intro.mp4", nil)
	req.Header.Set("Range", "bytes=2-4")
	ranged := httptest.NewRecorder()
	r.ServeHTTP(ranged, req)
	require.Equal(t, http.StatusPartialContent, ranged.Code)
	require.True(t, bytes.Equal([]byte("234"), ranged.Body.Bytes()))

	require.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/media/videos/1080p60/none.mp4", "").Code)

	rec = do(r, http.MethodGet, "/health", "")
	require.JSONEq(t, `{"status":"healthy","service":"video_generator"}`, rec.Body.String())
}
