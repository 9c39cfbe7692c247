package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/sokinpui/mend.go/model"
)

// OpenAIClient talks to the OpenAI chat completions API or any server that
// implements it.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client; baseURL is optional.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, modelName string, messages []model.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	log.Debugf("OpenAI request: model=%s messages=%d", modelName, len(messages))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", transportError("OpenAI API call failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", transportError("OpenAI returned no choices")
	}
	log.Debugf("OpenAI reply: finish_reason=%s", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(role model.Role) string {
	switch role {
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
