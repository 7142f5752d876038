package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

const (
	defaultArxivURL = "http://export.arxiv.org/api/query"
	maxFeedBytes    = 16 << 20
)

var (
	ErrMissingQuery  = fmt.Errorf("%w: search query required", appErr.ErrInvalid)
	ErrInvalidSort   = fmt.Errorf("%w: invalid sort parameter", appErr.ErrInvalid)
	ErrMissingIDList = fmt.Errorf("%w: missing id_list parameter", appErr.ErrInvalid)
)

var sortOrders = map[string]struct{}{
	"relevance":       {},
	"lastUpdatedDate": {},
}

type SearchQuery struct {
	Query   string
	Page    int
	PerPage int
	Sort    string
}

// Normalize applies defaults and clamps paging. It fails on a missing query
// or an unknown sort order.
func (q *SearchQuery) Normalize() error {
	if q.Query == "" {
		return ErrMissingQuery
	}
	if q.Sort == "" {
		q.Sort = "relevance"
	}
	if _, ok := sortOrders[q.Sort]; !ok {
		return ErrInvalidSort
	}
	q.Page = max(q.Page, 1)
	if q.PerPage == 0 {
		q.PerPage = 10
	}
	q.PerPage = min(max(q.PerPage, 1), 100)
	return nil
}

// ArxivClient relays queries to the arXiv export API and returns the Atom feed untouched.
type ArxivClient struct {
	apiURL string
	client *http.Client
}

func NewArxivClient(apiURL string, client *http.Client) *ArxivClient {
	if apiURL == "" {
		apiURL = defaultArxivURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArxivClient{apiURL: apiURL, client: client}
}

func (c *ArxivClient) Search(ctx context.Context, q SearchQuery) ([]byte, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	return c.fetch(ctx, url.Values{
		"search_query": {q.Query},
		"start":        {strconv.Itoa((q.Page - 1) * q.PerPage)},
		"max_results":  {strconv.Itoa(q.PerPage)},
		"sortBy":       {q.Sort},
	})
}

func (c *ArxivClient) ByID(ctx context.Context, idList string) ([]byte, error) {
	if idList == "" {
		return nil, ErrMissingIDList
	}
	return c.fetch(ctx, url.Values{"id_list": {idList}})
}

func (c *ArxivClient) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: arxiv request: %v", appErr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: arxiv api status %d", appErr.ErrUpstream, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read arxiv response: %v", appErr.ErrUpstream, err)
	}
	return body, nil
}
