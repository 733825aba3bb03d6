package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the provider-neutral error adapters return for failed calls.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s api error: %v", e.Provider, e.Err)
}

// Unwrap returns the provider SDK error.
func (e *APIError) Unwrap() error { return e.Err }

// ErrMissingCredentials is returned when no API key is configured for a provider.
var ErrMissingCredentials = errors.New("API key not found in environment")

// authMarkers are substrings that identify credential problems in provider
// messages that do not carry a status code.
var authMarkers = []string{
	"API_KEY",
	"api_key",
	"API key",
	"authentication",
	"Unauthorized",
	"401",
	"not found in environment",
}

// IsAuthError reports whether err is an authentication-class failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredentials) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return true
		}
	}
	msg := err.Error()
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Credentials holds optional per-provider API keys.
type Credentials struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
}
