package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// unhealthyAfter consecutive failures flips Health to unhealthy.
const unhealthyAfter = 3

type translateRequest struct {
	Model  string `json:"model"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslationText string `json:"translation_text"`
}

// HTTPTranslator calls a model server exposing POST {endpoint}/translate.
type HTTPTranslator struct {
	endpoint string
	client   *http.Client
	failures atomic.Int32
	lastErr  atomic.Value // string
}

// NewHTTPTranslator validates the endpoint and builds a client.
func NewHTTPTranslator(endpoint string, requestTimeout time.Duration) (*HTTPTranslator, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("http translator requires an endpoint")
	}
	return &HTTPTranslator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}, nil
}

// Translate posts one request. Non-2xx responses are failures.
func (h *HTTPTranslator) Translate(ctx context.Context, req Request) (string, error) {
	text, err := h.do(ctx, req)
	if err != nil {
		h.failures.Add(1)
		h.lastErr.Store(err.Error())
		return "", err
	}
	h.failures.Store(0)
	return text, nil
}

func (h *HTTPTranslator) do(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(translateRequest{
		Model:  req.Model,
		Text:   req.Text,
		Source: string(req.Pair.Source),
		Target: string(req.Pair.Target),
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.TranslationText, nil
}

// Health is derived from recent call outcomes.
func (h *HTTPTranslator) Health() HealthStatus {
	if n := h.failures.Load(); n >= unhealthyAfter {
		msg, _ := h.lastErr.Load().(string)
		return HealthStatus{Healthy: false, Message: fmt.Sprintf("%d consecutive failures: %s", n, msg)}
	}
	return HealthStatus{Healthy: true, Message: "model server at " + h.endpoint}
}
