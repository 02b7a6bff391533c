package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptar/promptar/internal/tlsutil"
)

// SpaceClient talks to one hosted inference space over its HTTP API.
// Calls are submitted as events and results collected from the event
// stream, so the caller never deals with the service's async protocol.
type SpaceClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewSpaceClient constructs a client and probes the space's config
// endpoint to verify it is reachable. An empty token probes anonymously.
func NewSpaceClient(ctx context.Context, space, token string, timeout time.Duration) (*SpaceClient, error) {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	c := &SpaceClient{
		baseURL: spaceBaseURL(space),
		token:   token,
		client:  tlsutil.SecureHTTPClient(timeout),
	}
	if err := c.probe(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// spaceBaseURL maps an owner/name space id to its hosted URL. Full URLs
// pass through unchanged.
func spaceBaseURL(space string) string {
	if strings.HasPrefix(space, "http://") || strings.HasPrefix(space, "https://") {
		return strings.TrimRight(space, "/")
	}
	sub := strings.ToLower(space)
	for _, r := range []string{"/", "_", "."} {
		sub = strings.ReplaceAll(sub, r, "-")
	}
	return "https://" + sub + ".hf.space"
}

func (c *SpaceClient) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("space unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("space probe failed: status=%d", resp.StatusCode)
	}
	return nil
}

func (c *SpaceClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Predict invokes the named API endpoint with positional arguments and
// waits for the terminal event. A single-output endpoint returns the bare
// value; multi-output endpoints return the full output list.
func (c *SpaceClient) Predict(ctx context.Context, apiName string, args ...any) (any, error) {
	eventID, err := c.submit(ctx, apiName, args)
	if err != nil {
		return nil, err
	}
	return c.collect(ctx, apiName, eventID)
}

func (c *SpaceClient) submit(ctx context.Context, apiName string, args []any) (string, error) {
	payload, err := json.Marshal(map[string]any{"data": args})
	if err != nil {
		return "", fmt.Errorf("failed to marshal call payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/gradio_api/call/%s", c.baseURL, strings.TrimLeft(apiName, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("space call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("space error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var submitResp struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("failed to decode call response: %w", err)
	}
	if submitResp.EventID == "" {
		return "", fmt.Errorf("space returned no event id")
	}
	return submitResp.EventID, nil
}

// collect reads the server-sent event stream until a terminal event.
func (c *SpaceClient) collect(ctx context.Context, apiName, eventID string) (any, error) {
	endpoint := fmt.Sprintf("%s/gradio_api/call/%s/%s", c.baseURL, strings.TrimLeft(apiName, "/"), eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("space result stream failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("space result error: status=%d", resp.StatusCode)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				var outputs []any
				if err := json.Unmarshal([]byte(data), &outputs); err != nil {
					return nil, fmt.Errorf("failed to decode result data: %w", err)
				}
				if len(outputs) == 1 {
					return outputs[0], nil
				}
				return outputs, nil
			case "error":
				return nil, fmt.Errorf("space generation failed: %s", data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("space result stream interrupted: %w", err)
	}
	return nil, fmt.Errorf("space result stream ended without a terminal event")
}

// UploadFile pushes a local file to the space and returns the server-side
// path to reference in Predict arguments.
func (c *SpaceClient) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/gradio_api/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("space upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("space upload error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var paths []string
	if err := json.NewDecoder(resp.Body).Decode(&paths); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("space upload returned no path")
	}
	return paths[0], nil
}
