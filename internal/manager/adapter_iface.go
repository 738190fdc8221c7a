package manager

import "context"

// InferenceAdapter abstracts the model runtime used by the Manager.
type InferenceAdapter interface {
	// Start loads the model described by spec and prepares a session that
	// generates with params. Loading happens once per session.
	Start(spec ModelSpec, params InferParams) (InferSession, error)
}

// InferSession is one loaded model ready to generate.
type InferSession interface {
	// Generate streams the continuation of prompt. onToken may be nil.
	// Implementations must return when the context is canceled.
	Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error)
	// Close releases the model.
	Close() error
}

// ModelSpec locates the weights to load.
type ModelSpec struct {
	// ID is the model identifier as configured.
	ID string
	// Path is the resolved model file, or the identifier itself when it does
	// not name a local file.
	Path string
	// AdapterPath is an optional LoRA adapter.
	AdapterPath string
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	// Content is the generated continuation, without the prompt.
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
