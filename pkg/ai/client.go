package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"assessment-generator/internal/config"
	"assessment-generator/internal/domain"
	"assessment-generator/internal/model"
	"assessment-generator/pkg/logger"
)

// Completer sends one system + user exchange to a language model and
// returns the raw text of the reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client turns a form submission into a schema-valid assessment document.
type Client struct {
	completer    Completer
	organisation string
	timeout      time.Duration
	log          *logger.Logger
}

func NewClient(completer Completer, cfg config.LLMConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		completer:    completer,
		organisation: cfg.Organisation,
		timeout:      cfg.Timeout,
		log:          log,
	}
}

// NewCompleter builds the completion backend selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicCompleter(cfg), nil
	case "gemini":
		return NewGeminiCompleter(ctx, cfg)
	case "service":
		return NewServiceCompleter(&http.Client{Timeout: cfg.Timeout}, cfg.ServiceURL, log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Generate prompts the model once, recovers the JSON object from its reply
// and validates it against the assessment schema.
func (c *Client) Generate(ctx context.Context, form model.FormSubmission) (*domain.AssessmentDocument, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.completer.Complete(ctx, SystemPrompt(), BuildPrompt(form, c.organisation))
	if err != nil {
		return nil, fmt.Errorf("error calling completion api: %w", err)
	}
	c.log.Debug("completion received", "chars", len(out), "elapsed", time.Since(start).String())

	raw, err := ExtractJSON(out)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateAssessment(raw); err != nil {
		return nil, err
	}

	var doc domain.AssessmentDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("error decoding assessment: %w", err)
	}
	return &doc, nil
}
