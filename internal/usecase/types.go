package usecase

import (
	"context"
	"time"

	"assessment-generator/internal/domain"
	"assessment-generator/internal/model"
)

// CaptchaVerifier checks a reCAPTCHA response token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// SubscriberStore is the subscriber record store. FindByToken returns nil,
// nil when no record carries the token.
type SubscriberStore interface {
	FindByToken(ctx context.Context, token string) (*domain.Subscriber, error)
	// CompareAndSwapGenerated sets the magnet's timestamp to next only if it
	// currently equals expected. A nil expected means "absent"; a nil next
	// removes the key. It reports whether the swap happened.
	CompareAndSwapGenerated(ctx context.Context, token, magnet string, expected, next *string) (bool, error)
	UpsertGenerated(ctx context.Context, email, token, magnet string, at time.Time) error
}

type AssessmentGenerator interface {
	Generate(ctx context.Context, form model.FormSubmission) (*domain.AssessmentDocument, error)
}

type DocumentRenderer interface {
	Submit(ctx context.Context, req domain.RenderRequest) (*domain.RenderJob, error)
	DownloadURL(ctx context.Context, jobID string) (string, error)
}

type Notifier interface {
	SendAssessmentReady(ctx context.Context, to, name, downloadURL string) error
}

// Request is one inbound lead-form submission.
type Request struct {
	Form              model.FormSubmission
	VerificationToken string
	Honeypot          string
	RecaptchaToken    string
	RemoteIP          string
}

type Result struct {
	// AlreadyGenerated is set when the token was throttled; nothing else
	// ran and DownloadURL is empty.
	AlreadyGenerated bool
	DownloadURL      string
	JobID            string
}

// Options carries the fixed settings of a Processor.
type Options struct {
	TemplateID string
	LeadMagnet string
	Window     time.Duration
	Now        func() time.Time
}
