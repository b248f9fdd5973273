// internal/enrich/oracle.go
package enrich

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Sampling temperature for all completions. Low, for consistent assessments.
const oracleTemperature = 0.3

// CompletionRequest is a single chat-completion exchange: a system role, a
// user role, and a token cap.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int64
}

// Oracle is the generative-text service behind the enrichment engine.
// Implementations must be safe for concurrent use.
type Oracle interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// OpenAIOracle is the production Oracle backed by the OpenAI chat-completion
// API. Transient transport failures are retried by the underlying client.
type OpenAIOracle struct {
	client openai.Client
	model  string
}

// NewOpenAIOracle configures an OpenAI-backed oracle. baseURL overrides the
// API endpoint when non-empty (proxies, tests).
func NewOpenAIOracle(apiKey, baseURL, model string) *OpenAIOracle {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIOracle{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAIOracle) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(oracleTemperature),
		MaxTokens:   openai.Int(req.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
