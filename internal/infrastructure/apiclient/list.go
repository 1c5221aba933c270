package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Page is the paginated envelope of DRF list endpoints
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}

// DecodeList accepts a bare JSON array or a paginated envelope
func DecodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding list: %w", err)
		}
		return items, nil
	}
	var page Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

// GetList fetches a list endpoint under /api
func GetList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	resp, err := c.Do(ctx, Request{Method: "GET", Path: path, Query: query})
	if err != nil {
		return nil, err
	}
	return DecodeList[T](resp.Body)
}
