package unsplash

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultQuery = "nature"
	perPage      = "20"
	// Upstream bodies beyond this are truncated.
	maxBody = 5 << 20
)

// Client calls the Unsplash photo search API with a server-side access key.
type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
}

func NewClient(baseURL, accessKey string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accessKey: accessKey,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Result is an upstream response, passed through as-is.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

func (c *Client) SearchPhotos(ctx context.Context, query string) (*Result, error) {
	if query == "" {
		query = DefaultQuery
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unsplash request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read unsplash response: %w", err)
	}
	return &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
