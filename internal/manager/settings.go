package manager

import (
	"fmt"
	"strings"

	"triaged/pkg/types"
)

// Defaults and bounds of the chatbot settings.
const (
	DefaultModelID      = "meta-llama/Llama-2-7b-chat-hf"
	DefaultMaxNewTokens = 200
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.95

	MinMaxNewTokens = 64
	MaxMaxNewTokens = 512
	MinTemperature  = 0.1
	MaxTemperature  = 1.5
	MinTopP         = 0.1
	MaxTopP         = 1.0
)

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() types.Settings {
	return types.Settings{
		ModelID:      DefaultModelID,
		MaxNewTokens: DefaultMaxNewTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
	}
}

// WithDefaults fills zero fields of s from DefaultSettings. It is meant for
// startup configuration; Load itself rejects zero values.
func WithDefaults(s types.Settings) types.Settings {
	d := DefaultSettings()
	s.ModelID = strings.TrimSpace(s.ModelID)
	s.AdapterPath = strings.TrimSpace(s.AdapterPath)
	if s.ModelID == "" {
		s.ModelID = d.ModelID
	}
	if s.MaxNewTokens == 0 {
		s.MaxNewTokens = d.MaxNewTokens
	}
	if s.Temperature == 0 {
		s.Temperature = d.Temperature
	}
	if s.TopP == 0 {
		s.TopP = d.TopP
	}
	return s
}

// ValidateSettings checks every field against its allowed range.
func ValidateSettings(s types.Settings) error {
	var problems []string
	if strings.TrimSpace(s.ModelID) == "" {
		problems = append(problems, "model_id is required")
	}
	if s.MaxNewTokens < MinMaxNewTokens || s.MaxNewTokens > MaxMaxNewTokens {
		problems = append(problems, fmt.Sprintf("max_new_tokens must be in [%d, %d]", MinMaxNewTokens, MaxMaxNewTokens))
	}
	if s.Temperature < MinTemperature || s.Temperature > MaxTemperature {
		problems = append(problems, fmt.Sprintf("temperature must be in [%.1f, %.1f]", MinTemperature, MaxTemperature))
	}
	if s.TopP < MinTopP || s.TopP > MaxTopP {
		problems = append(problems, fmt.Sprintf("top_p must be in [%.1f, %.1f]", MinTopP, MaxTopP))
	}
	if len(problems) > 0 {
		return invalidSettingsError{problems: problems}
	}
	return nil
}

// paramsFromSettings maps settings onto adapter parameters.
func paramsFromSettings(s types.Settings, stop []string, seed int) InferParams {
	return InferParams{
		Temperature: float32(s.Temperature),
		TopP:        float32(s.TopP),
		MaxTokens:   s.MaxNewTokens,
		Stop:        append([]string(nil), stop...),
		Seed:        seed,
	}
}
