// Package provider adapts LLM HTTP APIs to a single text-completion contract.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyResponse is returned when a provider answers without usable text.
var ErrEmptyResponse = eris.New("provider: empty response")

// Completion is a single prompt sent to a provider.
type Completion struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	TopP        float64 // 0 = provider default
	TopK        int     // 0 = provider default
}

// Provider turns a Completion into generated text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, c Completion) (string, error)
}

// Error is a failed provider call: non-2xx status, transport failure,
// timeout or malformed body. StatusCode is 0 when no response was received.
type Error struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFailure reports whether err is a provider failure (Error or
// ErrEmptyResponse), as opposed to a local error such as a bad config.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	var pe *Error
	return errors.As(err, &pe) || errors.Is(err, ErrEmptyResponse)
}

// text validates the generated text of a call.
func text(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}
