// Package client talks to a running gible API server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gerrors "gible/internal/errors"
	"gible/shared/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// do issues a GET and returns the body of a 200 response. Error responses
// come back as *errors.Error with the server's type and message.
func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var apiErr gerrors.Error
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Type == "" {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	apiErr.Code = resp.StatusCode
	return nil, &apiErr
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "/health")
	return err
}

func (c *Client) Status(ctx context.Context) (*shared.Status, error) {
	var st shared.Status
	if err := c.getJSON(ctx, "/api/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Branches(ctx context.Context) ([]shared.BranchInfo, error) {
	var branches []shared.BranchInfo
	if err := c.getJSON(ctx, "/api/branches", &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// Log fetches first-parent history. Zero asks for everything.
func (c *Client) Log(ctx context.Context, limit int) (*shared.Log, error) {
	var log shared.Log
	if err := c.getJSON(ctx, "/api/commits?limit="+strconv.Itoa(limit), &log); err != nil {
		return nil, err
	}
	return &log, nil
}

func (c *Client) Commit(ctx context.Context, ref string) (*shared.CommitDetail, error) {
	var detail shared.CommitDetail
	if err := c.getJSON(ctx, "/api/commits/"+url.PathEscape(ref), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// File fetches the raw content of path at ref.
func (c *Client) File(ctx context.Context, ref, path string) ([]byte, error) {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.do(ctx, "/api/files/"+url.PathEscape(ref)+"/"+strings.Join(segments, "/"))
}
