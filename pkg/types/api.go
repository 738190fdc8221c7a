package types

// Message is one role-tagged turn of a conversation.
type Message struct {
	// Speaker role: system, user or assistant. Other values are passed through untouched.
	// example: user
	Role string `json:"role" yaml:"role" example:"user"`
	// Message text.
	// example: I have had a headache for three days.
	Content string `json:"content" yaml:"content" example:"I have had a headache for three days."`
}

// Settings are the model and sampling parameters a chatbot is built with.
type Settings struct {
	// Model identifier, gguf file path or models-dir id.
	// example: meta-llama/Llama-2-7b-chat-hf
	ModelID string `json:"model_id" yaml:"model_id" toml:"model_id" example:"meta-llama/Llama-2-7b-chat-hf"`
	// Optional LoRA adapter applied on top of the base model.
	// example: /models/adapters/triage-lora.gguf
	AdapterPath string `json:"adapter_path" yaml:"adapter_path" toml:"adapter_path" example:"/models/adapters/triage-lora.gguf"`
	// Maximum number of new tokens to generate (64..512).
	// example: 200
	MaxNewTokens int `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens" example:"200"`
	// Sampling temperature (0.1..1.5).
	// example: 0.7
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature" example:"0.7"`
	// Nucleus sampling probability (0.1..1.0).
	// example: 0.95
	TopP float64 `json:"top_p" yaml:"top_p" toml:"top_p" example:"0.95"`
}

// ChatRequest is the payload for POST /sessions/{id}/messages.
type ChatRequest struct {
	// User message text.
	// example: I have a sharp pain in my lower right abdomen.
	Content string `json:"content" example:"I have a sharp pain in my lower right abdomen."`
}

// ChatResponse carries the assistant reply for one turn.
type ChatResponse struct {
	// Assistant reply shown to the user.
	// example: How long have you had this pain?
	Reply string `json:"reply" example:"How long have you had this pain?"`
	// True when the assistant believes it has enough information for a preliminary triage.
	// example: false
	ShouldStop bool `json:"should_stop" example:"false"`
	// Notice to display when should_stop is true.
	Notice string `json:"notice,omitempty"`
}

// SessionResponse describes a conversation session.
type SessionResponse struct {
	// Session identifier.
	// example: 5b1f0c2e-8a55-4c57-9d0e-3c1a1b5b8e42
	ID string `json:"id" example:"5b1f0c2e-8a55-4c57-9d0e-3c1a1b5b8e42"`
	// Creation time (unix seconds).
	// example: 1700000000
	CreatedAt int64 `json:"created_at" example:"1700000000"`
	// Conversation history in order.
	Messages []Message `json:"messages"`
}

// InfoResponse holds the static texts a front-end renders.
type InfoResponse struct {
	Title       string `json:"title" example:"Medical Chatbot"`
	Caption     string `json:"caption"`
	Disclaimer  string `json:"disclaimer"`
	InputHint   string `json:"input_hint" example:"Describe your symptoms..."`
	ReadyNotice string `json:"ready_notice"`
}

// ReloadResponse is returned by POST /model/reload.
type ReloadResponse struct {
	// example: Model reloaded.
	Message  string   `json:"message" example:"Model reloaded."`
	Settings Settings `json:"settings"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine state (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Backend kind serving generations.
	// example: server
	Backend string `json:"backend" example:"server"`
	// Settings of the loaded chatbot.
	Settings Settings `json:"settings"`
	// Last load or generation error, if any.
	LastError string `json:"last_error,omitempty"`
	// Number of live sessions.
	// example: 3
	Sessions int `json:"sessions" example:"3"`
	// Generations waiting for admission.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Generations currently running (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Total number of model loads.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Total number of replies generated.
	// example: 41
	RepliesTotal uint64 `json:"replies_total" example:"41"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// Model represents a discoverable model file on disk.
type Model struct {
	// Stable identifier for the model.
	// example: llama-2-7b-chat.Q4_K_M.gguf
	ID string `json:"id" example:"llama-2-7b-chat.Q4_K_M.gguf"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the model file on disk.
	Path string `json:"path"`
}

// StreamChunk is one NDJSON line of a streamed reply.
// Token lines carry raw fragments; the final line has Done set.
type StreamChunk struct {
	Token      string `json:"token,omitempty"`
	Done       bool   `json:"done,omitempty"`
	Reply      string `json:"reply,omitempty"`
	ShouldStop bool   `json:"should_stop,omitempty"`
	Notice     string `json:"notice,omitempty"`
	Error      string `json:"error,omitempty"`
}
