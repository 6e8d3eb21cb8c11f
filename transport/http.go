package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"printerconnect/planner"
	"printerconnect/protocol"
)

// HTTPClient is the REST-ish backend: it POSTs gzip-compressed event
// and telemetry envelopes to a cloud endpoint and treats the response
// body, when non-empty, as a single piggybacked command — the cloud
// answers a telemetry/event POST with whatever it wants the printer
// to do next, rather than running a separate push channel.
type HTTPClient struct {
	baseURL     string
	token       string
	printerID   string
	httpClient  *http.Client
	commandsCh  chan planner.Command
}

// NewHTTPClient builds an HTTP transport backend. baseURL should not
// have a trailing slash, e.g. "https://connect.example.com".
func NewHTTPClient(baseURL, token, printerID string, requestTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		token:     token,
		printerID: printerID,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		commandsCh: make(chan planner.Command, 8),
	}
}

func (c *HTTPClient) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/p/ping", nil)
	if err != nil {
		return fmt.Errorf("http transport: build ping request: %w", err)
	}
	c.addHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http transport: ping: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Commands() <-chan planner.Command {
	return c.commandsCh
}

func (c *HTTPClient) SendEvent(ctx context.Context, evt planner.Event) planner.ActionResult {
	payload, err := encodeEvent(evt)
	if err != nil {
		log.Printf("http transport: encode event: %v", err)
		return planner.ResultFailed
	}
	return c.post(ctx, "/p/events", payload)
}

func (c *HTTPClient) SendTelemetry(ctx context.Context, t protocol.TelemetryPayload) planner.ActionResult {
	return c.post(ctx, "/p/telemetry", t)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) planner.ActionResult {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("http transport: marshal payload for %s: %v", path, err)
		return planner.ResultFailed
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(body); err != nil {
		log.Printf("http transport: gzip %s body: %v", path, err)
		return planner.ResultFailed
	}
	if err := gz.Close(); err != nil {
		log.Printf("http transport: close gzip writer for %s: %v", path, err)
		return planner.ResultFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &compressed)
	if err != nil {
		log.Printf("http transport: build request for %s: %v", path, err)
		return planner.ResultFailed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("http transport: post %s: %v", path, err)
		return planner.ResultFailed
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.consumeCommand(resp.Body)
		return planner.ResultOk
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusTooManyRequests:
		return planner.ResultRefused
	default:
		log.Printf("http transport: post %s: unexpected status %d", path, resp.StatusCode)
		return planner.ResultFailed
	}
}

// consumeCommand decodes a piggybacked command from a response body,
// if present, and delivers it non-blocking. A full channel drops the
// command — the driver loop is expected to keep up; the Planner's own
// duplicate-in-flight-command handling covers a command arriving
// before the previous one was fully processed.
func (c *HTTPClient) consumeCommand(r io.Reader) {
	var payload protocol.CommandPayload
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("http transport: decode piggybacked command: %v", err)
		return
	}
	cmd, err := decodeCommand(payload)
	if err != nil {
		log.Printf("http transport: %v", err)
		return
	}
	select {
	case c.commandsCh <- cmd:
	default:
		log.Printf("http transport: command channel full, dropping command %d", cmd.Id)
	}
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.printerID != "" {
		req.Header.Set("X-Printer-Id", c.printerID)
	}
}
