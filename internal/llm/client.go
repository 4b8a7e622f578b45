package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Sampling are the generation parameters applied to every request.
type Sampling struct {
	MaxTokens   int
	Temperature float32
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
