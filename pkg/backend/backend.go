// Package backend turns an utterance into a short description of the intended
// command and a snippet of action code, the way the interpretation service
// answers /voice_agent/process_voice.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Interpreter produces the structured command and the action code for text.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (prompt, code string, err error)
}

// Model completes a single text prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var ErrEmptyCompletion = errors.New("model returned an empty completion")

// TwoStep asks the model for a structured command first, then for action code
// implementing that command.
type TwoStep struct {
	model  Model
	logger *slog.Logger
}

func NewTwoStep(model Model, logger *slog.Logger) *TwoStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwoStep{model: model, logger: logger}
}

func (t *TwoStep) Interpret(ctx context.Context, text string) (string, string, error) {
	prompt, err := t.model.Generate(ctx, commandPrompt(text))
	if err != nil {
		return "", "", fmt.Errorf("generating command: %w", err)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", "", ErrEmptyCompletion
	}
	t.logger.Debug("Generated command", "text", text, "prompt", prompt)

	code, err := t.model.Generate(ctx, codePrompt(prompt))
	if err != nil {
		return "", "", fmt.Errorf("generating action code: %w", err)
	}
	code = strings.TrimSpace(code)
	t.logger.Debug("Generated action code", "code", code)

	return prompt, code, nil
}
