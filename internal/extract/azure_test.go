package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	perrors "github.com/xxxsen/papercast/internal/pkg/errors"
)

func newDocIntelServer(t *testing.T, finalStatus string) (*httptest.Server, *int32) {
	var polls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		switch r.Method {
		case http.MethodPost:
			require.Equal(t, "/formrecognizer/documentModels/prebuilt-read:analyze", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "https://arxiv.org/pdf/1.pdf", body["urlSource"])
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = w.Write([]byte(`{"status":"running"}`))
				return
			}
			if finalStatus == "failed" {
				_, _ = w.Write([]byte(`{"status":"failed","error":{"code":"InvalidContent","message":"bad"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"succeeded","analyzeResult":{"paragraphs":[{"content":"Hello"},{"content":" "},{"content":"world"}]}}`))
		}
	}))
	return srv, &polls
}

func TestAzureExtractorPollsUntilSucceeded(t *testing.T) {
	srv, polls := newDocIntelServer(t, "succeeded")
	defer srv.Close()

	ex, err := New("azure", map[string]interface{}{"endpoint": srv.URL, "api_key": "key", "poll_interval_ms": 5})
	require.NoError(t, err)
	text, err := ex.Extract(context.Background(), "https://arxiv.org/pdf/1.pdf")
	require.NoError(t, err)
	require.Equal(t, "Hello world", text)
	require.Equal(t, int32(2), atomic.LoadInt32(polls))
}

func TestAzureExtractorFailedAnalysis(t *testing.T) {
	srv, _ := newDocIntelServer(t, "failed")
	defer srv.Close()

	ex, err := New("azure", map[string]interface{}{"endpoint": srv.URL, "api_key": "key", "poll_interval_ms": 5})
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), "https://arxiv.org/pdf/1.pdf")
	require.Error(t, err)
	require.True(t, errors.Is(err, perrors.ErrUpstream))
	require.Contains(t, err.Error(), "InvalidContent")
}

func TestAzureExtractorMissingCredentials(t *testing.T) {
	ex, err := New("azure", nil)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), "https://arxiv.org/pdf/1.pdf")
	require.True(t, errors.Is(err, perrors.ErrUpstream))
}

func TestLocalExtractorRejectsNonPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a pdf"))
	}))
	defer srv.Close()

	ex, err := New("local", nil)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), srv.URL+"/x.pdf")
	require.True(t, errors.Is(err, perrors.ErrInvalidPDF))
}

func TestUnknownExtractor(t *testing.T) {
	_, err := New("ocr", nil)
	require.Error(t, err)
}
