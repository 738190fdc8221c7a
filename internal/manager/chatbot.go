package manager

import (
	"context"
	"fmt"
	"strings"

	"triaged/internal/chat"
	"triaged/pkg/types"
)

// Chatbot is one loaded model with fixed settings. A settings change builds a
// new Chatbot; sampling parameters never change after construction.
type Chatbot struct {
	settings types.Settings
	spec     ModelSpec
	sess     InferSession
}

// NewChatbot loads the model through adapter.
func NewChatbot(adapter InferenceAdapter, spec ModelSpec, settings types.Settings, params InferParams) (*Chatbot, error) {
	sess, err := adapter.Start(spec, params)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", spec.ID, err)
	}
	return &Chatbot{settings: settings, spec: spec, sess: sess}, nil
}

// Settings returns the settings the chatbot was built with.
func (c *Chatbot) Settings() types.Settings { return c.settings }

// Respond formats history, generates a continuation and evaluates it.
// history is only read.
func (c *Chatbot) Respond(ctx context.Context, history []types.Message, onToken func(string) error) (chat.Result, FinalResult, error) {
	prompt := chat.FormatHistory(history)
	var streamed strings.Builder
	tok := func(t string) error {
		streamed.WriteString(t)
		if onToken != nil {
			return onToken(t)
		}
		return nil
	}
	final, err := c.sess.Generate(ctx, prompt, tok)
	if err != nil {
		return chat.Result{}, final, err
	}
	content := final.Content
	if content == "" {
		content = streamed.String()
	}
	// A causal LM decodes the prompt together with its continuation.
	return chat.Evaluate(prompt + content), final, nil
}

// Close releases the model.
func (c *Chatbot) Close() error {
	if c == nil || c.sess == nil {
		return nil
	}
	return c.sess.Close()
}
