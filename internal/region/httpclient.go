package region

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"RackPower/internal/driver"
)

const (
	maxRetries    = 3
	retryInterval = 5 * time.Second
)

// HTTPClient talks to the region controller's rack API over HTTP.
// Mutating calls are retried a bounded number of times on transport
// failures; application-level rejections are surfaced immediately.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client

	// retryWait is shortened in tests.
	retryWait time.Duration
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		client:    &http.Client{Timeout: timeout},
		retryWait: retryInterval,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path, body string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			log.Warnf("Retrying region call %s %s, attempt %d/%d", method, path, attempt, maxRetries)
			select {
			case <-time.After(c.retryWait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		reply, retryable, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return reply, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("region call %s %s failed after %d attempts: %w",
		method, path, maxRetries, lastErr)
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path, body string) (reply string, retryable bool, err error) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", false, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, &NoSuchNodeError{SystemID: gjson.GetBytes(raw, "system_id").String()}
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("region returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("region returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw), false, nil
}

func (c *HTTPClient) UpdateNodePowerState(ctx context.Context, systemID string, state driver.State) error {
	body, _ := sjson.Set("", "power_state", string(state))
	_, err := c.do(ctx, http.MethodPost, "/rack/v1/nodes/"+systemID+"/power-state", body)
	if err != nil {
		return wrapNoSuchNode(err, systemID)
	}
	return nil
}

func (c *HTTPClient) MarkNodeFailed(ctx context.Context, systemID, description string) error {
	body, _ := sjson.Set("", "error_description", description)
	_, err := c.do(ctx, http.MethodPost, "/rack/v1/nodes/"+systemID+"/mark-failed", body)
	if err != nil {
		return wrapNoSuchNode(err, systemID)
	}
	return nil
}

func (c *HTTPClient) SendEvent(ctx context.Context, eventType, systemID, description string) error {
	body, _ := sjson.Set("", "type", eventType)
	body, _ = sjson.Set(body, "system_id", systemID)
	body, _ = sjson.Set(body, "description", description)
	_, err := c.do(ctx, http.MethodPost, "/rack/v1/events", body)
	if err != nil {
		return wrapNoSuchNode(err, systemID)
	}
	return nil
}

func (c *HTTPClient) ListNodes(ctx context.Context) ([]Node, error) {
	reply, err := c.do(ctx, http.MethodGet, "/rack/v1/nodes", "")
	if err != nil {
		return nil, err
	}

	var nodes []Node
	gjson.Get(reply, "nodes").ForEach(func(_, value gjson.Result) bool {
		node := Node{
			SystemID:   value.Get("system_id").String(),
			Hostname:   value.Get("hostname").String(),
			PowerType:  value.Get("power_type").String(),
			PowerState: driver.State(value.Get("power_state").String()),
			Context:    make(map[string]string),
		}
		value.Get("power_parameters").ForEach(func(key, val gjson.Result) bool {
			node.Context[key.String()] = val.String()
			return true
		})
		nodes = append(nodes, node)
		return true
	})
	return nodes, nil
}

// wrapNoSuchNode fills in the system ID when the region's 404 reply
// did not carry one.
func wrapNoSuchNode(err error, systemID string) error {
	if nsn, ok := err.(*NoSuchNodeError); ok && nsn.SystemID == "" {
		nsn.SystemID = systemID
	}
	return err
}

var _ Client = (*HTTPClient)(nil)
