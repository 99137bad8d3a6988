package usecase

import (
	"errors"
	"fmt"
	"strings"

	"assessment-generator/internal/domain"
	"assessment-generator/internal/model"
)

var (
	ErrMissingFields    = errors.New("missing required fields")
	ErrBotDetected      = errors.New("bot detected")
	ErrCaptchaRejected  = errors.New("captcha verification failed")
	ErrAlreadyGenerated = errors.New("assessment already generated")
	ErrGeneration       = errors.New("assessment generation failed")
	ErrTokenInUse       = domain.ErrTokenInUse
	ErrRenderTimeout    = domain.ErrRenderTimeout
	ErrRenderFailed     = domain.ErrRenderFailed
)

// Pipeline step names used in StepError.
const (
	StepCaptcha  = "captcha"
	StepLookup   = "lookup"
	StepClaim    = "claim"
	StepGenerate = "generate"
	StepRecord   = "record"
	StepRender   = "render"
	StepNotify   = "notify"
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []model.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid submission: " + strings.Join(msgs, "; ")
}

// StepError records which downstream step failed. It exists for logging;
// callers see one generic failure.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepErr(step string, err error) error {
	return &StepError{Step: step, Err: err}
}
