package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/papercast/internal/model"
	"github.com/xxxsen/papercast/internal/pkg/errors"
)

const (
	defaultSearchAPIVersion = "2023-11-01"
	defaultIndexName        = "paper-videos"
	vectorField             = "content_vector"
)

type azureConfig struct {
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key"`
	IndexName  string `json:"index_name"`
	APIVersion string `json:"api_version"`
	TimeoutSec int    `json:"timeout_sec"`
}

type azureIndex struct {
	endpoint   string
	apiKey     string
	indexName  string
	apiVersion string
	client     *http.Client
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchRequest struct {
	Search        string        `json:"search"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
	Select        string        `json:"select"`
	Top           int           `json:"top"`
}

type searchResponse struct {
	Value []struct {
		ID      string  `json:"id"`
		Content string  `json:"content"`
		Score   float64 `json:"@search.score"`
	} `json:"value"`
}

type indexResponse struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"value"`
}

func (a *azureIndex) Name() string {
	return "azure"
}

func (a *azureIndex) docsURL(suffix string) string {
	return fmt.Sprintf("%s/indexes/%s/docs%s?api-version=%s",
		strings.TrimRight(a.endpoint, "/"), url.PathEscape(a.indexName), suffix, url.QueryEscape(a.apiVersion))
}

func (a *azureIndex) Get(ctx context.Context, id string) (*model.PaperDocument, error) {
	key := strings.ReplaceAll(id, "'", "''")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.docsURL("('"+url.PathEscape(key)+"')"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readError("get document", resp)
	}
	doc := &model.PaperDocument{}
	if err := json.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", errors.ErrUpstream, err)
	}
	return doc, nil
}

func (a *azureIndex) Upload(ctx context.Context, docs ...*model.PaperDocument) error {
	if len(docs) == 0 {
		return nil
	}
	actions := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		actions = append(actions, uploadAction(doc))
	}
	var out indexResponse
	if err := a.postJSON(ctx, a.docsURL("/index"), map[string]interface{}{"value": actions}, &out); err != nil {
		return err
	}
	for _, item := range out.Value {
		if !item.Status {
			return fmt.Errorf("%w: index document %s: %s", errors.ErrUpstream, item.Key, item.ErrorMessage)
		}
	}
	return nil
}

func uploadAction(doc *model.PaperDocument) map[string]interface{} {
	action := map[string]interface{}{
		"@search.action": "upload",
		"id":             doc.ID,
		"content":        doc.Content,
	}
	if doc.Title != "" {
		action["title"] = doc.Title
	}
	if doc.URL != "" {
		action["url"] = doc.URL
	}
	if doc.Type != "" && doc.Type != model.DocumentTypePaper {
		action["type"] = doc.Type
	}
	if len(doc.ContentVector) > 0 {
		action[vectorField] = doc.ContentVector
	}
	return action
}

func (a *azureIndex) HybridSearch(ctx context.Context, text string, vector []float32, k int, top int) ([]model.SearchHit, error) {
	body := searchRequest{
		Search: text,
		Select: "content",
		Top:    top,
	}
	if len(vector) > 0 {
		body.VectorQueries = []vectorQuery{{Kind: "vector", Vector: vector, Fields: vectorField, K: k}}
	}
	var out searchResponse
	if err := a.postJSON(ctx, a.docsURL("/search"), body, &out); err != nil {
		return nil, err
	}
	hits := make([]model.SearchHit, 0, len(out.Value))
	for _, v := range out.Value {
		hits = append(hits, model.SearchHit{ID: v.ID, Content: v.Content, Score: v.Score})
	}
	return hits, nil
}

func (a *azureIndex) postJSON(ctx context.Context, endpoint string, in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return readError("search request", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode search response: %v", errors.ErrUpstream, err)
	}
	return nil
}

func (a *azureIndex) do(req *http.Request) (*http.Response, error) {
	if a.endpoint == "" || a.apiKey == "" {
		return nil, fmt.Errorf("%w: search credentials missing", errors.ErrUpstream)
	}
	req.Header.Set("api-key", a.apiKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUpstream, err)
	}
	return resp, nil
}

func readError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: %s: %s: %s", errors.ErrUpstream, op, resp.Status, strings.TrimSpace(string(raw)))
}

func createAzureIndex(ctx context.Context, args interface{}) (Index, error) {
	cfg := &azureConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	idx := &azureIndex{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		indexName:  strings.TrimSpace(cfg.IndexName),
		apiVersion: strings.TrimSpace(cfg.APIVersion),
	}
	if idx.indexName == "" {
		idx.indexName = defaultIndexName
	}
	if idx.apiVersion == "" {
		idx.apiVersion = defaultSearchAPIVersion
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	idx.client = &http.Client{Timeout: timeout}
	return idx, nil
}

func init() {
	Register("azure", createAzureIndex)
}
