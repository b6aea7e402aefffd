// Package mailchimp is the HTTP client for the Mailchimp v3 marketing API:
// bearer-token requests against a per-token regional shard, offset pagination
// over collection endpoints, merge-field management, webhook installation and
// batched member writes.
package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/listmirror/internal/apperror"
)

// Token is the remote access credential resolved from a session: the bearer
// token plus the regional shard ("dc", e.g. "us21") that hosts the account.
type Token struct {
	AccessToken string
	DC          string
}

// Pagination constants.
//
// PageSize is the fixed count requested per page. maxPages caps the
// pagination loop: the stop condition compares accumulated length to the
// most recently reported total_items, so if the remote total shrinks between
// pages (concurrent deletion) equality may never be reached. The cap turns
// that livelock into an error instead of changing the stop rule.
const (
	PageSize = 1000
	maxPages = 10000
)

// Client talks to the marketing API. It holds no per-user state; the token
// is passed into every call, so one Client serves all sessions.
type Client struct {
	apiTemplate string // contains "<dc>", substituted per token
	httpClient  *http.Client
}

// New creates a Client for the given API URL template. The template normally
// comes from config and contains the "<dc>" placeholder; tests point it at an
// httptest server without a placeholder.
func New(apiTemplate string) *Client {
	return &Client{
		apiTemplate: apiTemplate,
		httpClient:  &http.Client{},
	}
}

// endpoint resolves a relative API path against the token's regional shard.
func (c *Client) endpoint(tok Token, path string) (string, error) {
	base, err := url.Parse(strings.ReplaceAll(c.apiTemplate, "<dc>", tok.DC))
	if err != nil {
		return "", fmt.Errorf("mailchimp: parsing api url template: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("mailchimp: parsing endpoint path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// do issues one authenticated request and returns the response body.
// Any non-2xx status becomes an apperror.ErrRemote naming method, path and
// status, expired tokens and rate limits included, undifferentiated.
func (c *Client) do(ctx context.Context, tok Token, method, path string, query url.Values, body []byte) ([]byte, error) {
	endpoint, err := c.endpoint(tok, path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("mailchimp: building %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Remote(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Remote(fmt.Sprintf("reading %s %s response", method, path), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.RemoteStatus(method, path, resp.StatusCode)
	}
	return data, nil
}

// Get performs a raw authenticated GET. Used by the passthrough listing
// endpoints that relay the provider's response to the caller unmodified.
func (c *Client) Get(ctx context.Context, tok Token, path string) ([]byte, error) {
	return c.do(ctx, tok, http.MethodGet, path, nil, nil)
}

// fetchAll drives offset pagination over a collection endpoint until the
// accumulated item count equals the server-reported total.
//
// Each request carries count=PageSize and offset=len(items accumulated so
// far), plus the since filter when one is given. Pages are fetched strictly
// in sequence. The termination check is count-based, not cursor-based: it
// compares against the LAST-seen total_items, which means a total of 0 is
// satisfied by the very first (empty) response.
func fetchAll[T any](
	ctx context.Context,
	c *Client,
	tok Token,
	path string,
	sinceParam string,
	since *time.Time,
	decodePage func(data []byte) (items []T, total int, err error),
) ([]T, error) {
	var items []T
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, apperror.Remote(
				fmt.Sprintf("paginating %s", path),
				fmt.Errorf("no convergence after %d pages; remote total may be shrinking", maxPages),
			)
		}

		query := url.Values{}
		query.Set("count", strconv.Itoa(PageSize))
		query.Set("offset", strconv.Itoa(len(items)))
		if since != nil {
			query.Set(sinceParam, since.UTC().Format(time.RFC3339))
		}

		data, err := c.do(ctx, tok, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		pageItems, total, err := decodePage(data)
		if err != nil {
			return nil, err
		}

		items = append(items, pageItems...)
		if len(items) == total {
			return items, nil
		}
	}
}

// decodeInto unmarshals a response body, wrapping decode failures uniformly.
func decodeInto(data []byte, v any, what string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return apperror.Remote(fmt.Sprintf("decoding %s", what), err)
	}
	return nil
}
