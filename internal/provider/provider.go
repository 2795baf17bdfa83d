// Package provider abstracts the local LLM backend used to compose grounded
// answers from retrieved context.
package provider

import (
	"context"
	"errors"
)

// GenerateRequest is one completion call.
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider generates text completions.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Name identifies the backend for logs and status output.
	Name() string

	Close() error
}

// ErrNoProvider indicates that no LLM backend is reachable.
var ErrNoProvider = errors.New("no llm provider available")
