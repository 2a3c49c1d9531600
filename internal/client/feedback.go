package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/feedback"
)

// ListFeedback fetches up to limit feedback items, newest first. limit 0
// leaves the server default.
func (c *Client) ListFeedback(ctx context.Context, token string, limit int) ([]feedback.Item, error) {
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	if limit != 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var items []feedback.Item
	if err := c.getJSON(ctx, "/feedback", q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// LatestFeedback fetches the newest feedback item; nil when there is none.
func (c *Client) LatestFeedback(ctx context.Context, token string) (*feedback.Item, error) {
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	var item *feedback.Item
	if err := c.getJSON(ctx, "/feedback/latest", q, &item); err != nil {
		return nil, err
	}
	return item, nil
}

// serverURL resolves path against the dispatch endpoint's base.
func (c *Client) serverURL(path string, q url.Values) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/dispatch") + path
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	target, err := c.serverURL(path, q)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apierror.Wrap(apierror.KindUpstream, 0, "feedback request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return apierror.New(apierror.KindAuth, resp.StatusCode, "feedback token rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return apierror.FromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apierror.Wrap(apierror.KindDecode, resp.StatusCode, "decoding feedback", err)
	}
	return nil
}
