// Package googlebooks is a BookProvider backed by the Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

const (
	DefaultBaseURL    = "https://www.googleapis.com"
	defaultMaxResults = 10
)

type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	doer       ports.HTTPDoer
}

// New builds a client. doer is normally a ratelimit.Fetcher so every call
// goes through the shared throttle.
func New(baseURL, apiKey string, doer ports.HTTPDoer) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		maxResults: defaultMaxResults,
		doer:       doer,
	}
}

func (c *Client) SearchByQuery(ctx context.Context, query domain.SearchQuery) ([]domain.BookMetadata, error) {
	q := buildQuery(query)
	if q == "" {
		return nil, nil
	}
	volumes, err := c.volumes(ctx, q, c.maxResults, "search")
	if err != nil {
		return nil, err
	}
	return volumes, nil
}

func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*domain.BookMetadata, error) {
	isbn = domain.NormalizeISBN(isbn)
	if isbn == "" {
		return nil, nil
	}
	volumes, err := c.volumes(ctx, "isbn:"+isbn, 1, "isbn")
	if err != nil {
		return nil, err
	}
	if len(volumes) == 0 {
		return nil, nil
	}
	return &volumes[0], nil
}

func (c *Client) volumes(ctx context.Context, q string, maxResults int, operation string) ([]domain.BookMetadata, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/books/v1/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, wrapTemporaryIfNeeded(operation, newHTTPStatusError(operation, resp))
	}

	var payload volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}
	out := make([]domain.BookMetadata, 0, len(payload.Items))
	for _, item := range payload.Items {
		meta := item.toMetadata()
		if meta.Title == "" {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

func buildQuery(q domain.SearchQuery) string {
	if loose := strings.TrimSpace(q.Loose); loose != "" {
		return loose
	}
	var parts []string
	if title := strings.TrimSpace(q.Title); title != "" {
		parts = append(parts, `intitle:"`+escapeQuotes(title)+`"`)
	}
	if author := strings.TrimSpace(q.Author); author != "" {
		parts = append(parts, `inauthor:"`+escapeQuotes(author)+`"`)
	}
	return strings.Join(parts, " ")
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("googlebooks %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("googlebooks %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 500 {
		return domain.WrapError(domain.ErrTemporary, "googlebooks "+operation, err)
	}
	return err
}
