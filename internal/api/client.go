package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/gaze.report/internal/httputil"
)

// Client drives a running recorder over its HTTP API.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient talks to the recorder at addr ("host:port" or a full URL).
func NewClient(addr string, hc httputil.HTTPClient) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(addr, "/"), http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return httputil.DecodeResponse(resp, out)
}

// Status returns the live state of the current session.
func (c *Client) Status(ctx context.Context) (SessionStatus, error) {
	var st SessionStatus
	err := c.do(ctx, http.MethodGet, "/api/session", nil, &st)
	return st, err
}

// Start begins a new session.
func (c *Client) Start(ctx context.Context, req StartRequest) (SessionStatus, error) {
	var st SessionStatus
	err := c.do(ctx, http.MethodPost, "/api/session/start", req, &st)
	return st, err
}

// Action sends pause, resume or stop to the current session.
func (c *Client) Action(ctx context.Context, action string) (SessionStatus, error) {
	switch action {
	case "pause", "resume", "stop":
	default:
		return SessionStatus{}, fmt.Errorf("unknown session action %q", action)
	}
	var st SessionStatus
	err := c.do(ctx, http.MethodPost, "/api/session/"+action, nil, &st)
	return st, err
}

func (c *Client) SetRealtime(ctx context.Context, on bool) error {
	return c.do(ctx, http.MethodPut, "/api/session/realtime", realtimeRequest{Enabled: on}, nil)
}
