// Package ai enriches helper records with skills inferred by a language model.
package ai

import "context"

// Generator sends a prompt to a model and returns its textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}
