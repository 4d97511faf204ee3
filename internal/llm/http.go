package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/reliability"
)

// HTTPModel posts classification requests to a compatible JSON endpoint.
type HTTPModel struct {
	url    string
	client *http.Client
}

type httpRequest struct {
	System     string           `json:"system"`
	Messages   []intent.Message `json:"messages"`
	SchemaName string           `json:"schema_name"`
	Schema     map[string]any   `json:"schema"`
}

func NewHTTPModel(url string, timeout time.Duration) *HTTPModel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPModel{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (m *HTTPModel) Classify(ctx context.Context, req intent.ModelRequest) (intent.RawIntent, error) {
	payload, err := json.Marshal(httpRequest{
		System:     req.System,
		Messages:   req.Messages,
		SchemaName: req.SchemaName,
		Schema:     req.Schema,
	})
	if err != nil {
		return intent.RawIntent{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return intent.RawIntent{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(httpReq)
	if err != nil {
		return intent.RawIntent{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return intent.RawIntent{}, &reliability.StatusError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		return consumeStreaming(res.Body)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return intent.RawIntent{}, fmt.Errorf("read response: %w", err)
	}
	return parseBody(body)
}

// parseBody accepts either the intent object itself or an envelope whose
// text field holds it as a JSON string.
func parseBody(body []byte) (intent.RawIntent, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return intent.RawIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	if _, ok := obj["intent"]; ok {
		return decodeRawIntent(body)
	}
	if text := extractText(obj); text != "" {
		return decodeRawIntent([]byte(text))
	}
	return intent.RawIntent{}, fmt.Errorf("decode intent: no intent in response")
}

// consumeStreaming reads SSE or NDJSON frames. A frame carrying a whole
// intent object wins; otherwise text fragments are concatenated and decoded.
func consumeStreaming(body io.Reader) (intent.RawIntent, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			out.WriteString(line)
			continue
		}
		if _, ok := obj["intent"]; ok {
			return decodeRawIntent([]byte(line))
		}
		out.WriteString(extractText(obj))
	}
	if err := scanner.Err(); err != nil {
		return intent.RawIntent{}, fmt.Errorf("stream read: %w", err)
	}
	return decodeRawIntent([]byte(out.String()))
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "output", "content"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
