// Package provider resolves a model identifier plus credentials into a
// concrete model.Model adapter.
package provider

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/jubilee/model"
	anthropicmodel "github.com/hupe1980/jubilee/model/anthropic"
	openaimodel "github.com/hupe1980/jubilee/model/openai"
)

// Name identifies a supported provider.
type Name string

const (
	// OpenAI selects the OpenAI Chat Completions adapter.
	OpenAI Name = "openai"
	// Anthropic selects the Anthropic Messages adapter.
	Anthropic Name = "anthropic"
)

// Detect infers the provider from a model identifier. An explicit
// "provider:model" prefix wins; otherwise claude* ids map to Anthropic and
// everything else to OpenAI.
func Detect(id string) (Name, string) {
	if p, rest, ok := strings.Cut(id, ":"); ok {
		switch Name(strings.ToLower(p)) {
		case OpenAI:
			return OpenAI, rest
		case Anthropic:
			return Anthropic, rest
		}
	}
	if strings.HasPrefix(strings.ToLower(id), "claude") {
		return Anthropic, id
	}
	return OpenAI, id
}

// New builds the adapter for id. A missing key for the detected provider is
// reported as model.ErrMissingCredentials so callers can surface it as an
// authentication problem.
func New(id string, creds model.Credentials) (model.Model, error) {
	name, modelID := Detect(id)
	switch name {
	case Anthropic:
		if creds.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: %w", model.ErrMissingCredentials)
		}
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = creds.AnthropicAPIKey
			if modelID != "" {
				o.Model = anthropic.Model(modelID)
			}
		}), nil
	default:
		if creds.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: %w", model.ErrMissingCredentials)
		}
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.APIKey = creds.OpenAIAPIKey
			o.BaseURL = creds.OpenAIBaseURL
			if modelID != "" {
				o.Model = modelID
			}
		}), nil
	}
}
