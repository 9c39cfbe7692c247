package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/sokinpui/mend.go/model"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaClient talks to a local Ollama instance over its /api/chat endpoint.
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

// NewOllamaClient creates a client for host, defaulting to localhost:11434.
func NewOllamaClient(host string) *OllamaClient {
	host = strings.TrimSpace(host)
	if host == "" {
		host = defaultOllamaHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(host, "/"),
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []model.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// Chat sends the whole conversation and returns the assistant's content.
func (c *OllamaClient) Chat(ctx context.Context, modelName string, messages []model.Message) (string, error) {
	reqBody, err := json.Marshal(ollamaRequest{Model: modelName, Messages: messages})
	if err != nil {
		return "", transportError("failed to marshal Ollama request: %v", err)
	}

	log.Debugf("Ollama request: model=%s messages=%d", modelName, len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", transportError("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", transportError("Ollama request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("failed to read Ollama response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", transportError("Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return "", transportError("Ollama error: %s", msg.String())
	}
	content := gjson.GetBytes(body, "message.content")
	if !content.Exists() {
		return "", transportError("unexpected Ollama response: %s", truncate(string(body), 200))
	}

	log.Debugf("Ollama reply: %d bytes, done=%v", len(content.String()), gjson.GetBytes(body, "done").Bool())
	return content.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
