package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-generator/pkg/logger"
)

const defaultLeadMagnet = "IT Assessment"

// Processor runs one submission through the lead-magnet pipeline: bot gate,
// throttle claim, generation, state update, render and notification. Steps
// run strictly in order and the first failure aborts the rest.
type Processor struct {
	captcha   CaptchaVerifier
	store     SubscriberStore
	generator AssessmentGenerator
	renderer  DocumentRenderer
	notifier  Notifier

	templateID string
	magnet     string
	window     time.Duration
	now        func() time.Time
	log        *logger.Logger
}

func NewProcessor(c CaptchaVerifier, s SubscriberStore, g AssessmentGenerator, r DocumentRenderer, n Notifier, opts Options, log *logger.Logger) *Processor {
	if opts.LeadMagnet == "" {
		opts.LeadMagnet = defaultLeadMagnet
	}
	if opts.Window <= 0 {
		opts.Window = 48 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		captcha:    c,
		store:      s,
		generator:  g,
		renderer:   r,
		notifier:   n,
		templateID: opts.TemplateID,
		magnet:     opts.LeadMagnet,
		window:     opts.Window,
		now:        opts.Now,
		log:        log,
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	form := req.Form
	if err := validateForm(&form); err != nil {
		return nil, err
	}
	log := p.log.With("email", form.Email)

	if err := p.checkBot(ctx, req); err != nil {
		log.Warn("submission rejected by bot gate", "reason", err.Error(), "remote_ip", req.RemoteIP)
		return nil, err
	}

	now := p.now()
	c, owner, err := p.claim(ctx, req.VerificationToken, form.Email, now)
	switch {
	case errors.Is(err, ErrAlreadyGenerated):
		log.Info("assessment already generated for token, skipping")
		return &Result{AlreadyGenerated: true}, nil
	case errors.Is(err, ErrTokenInUse):
		log.Warn("verification token belongs to another subscriber", "verification_token", req.VerificationToken)
		return nil, err
	case err != nil:
		return nil, err
	}
	recordEmail := form.Email
	if owner != "" {
		recordEmail = owner
	}

	start := time.Now()
	doc, err := p.generator.Generate(ctx, form)
	if err != nil {
		p.release(ctx, c)
		return nil, stepErr(StepGenerate, fmt.Errorf("%w: %w", ErrGeneration, err))
	}
	log.Debug("assessment generated", "elapsed", time.Since(start).String())

	if err := p.store.UpsertGenerated(ctx, recordEmail, req.VerificationToken, p.magnet, now); err != nil {
		p.release(ctx, c)
		if errors.Is(err, ErrTokenInUse) {
			// another address took the token after the claim
			log.Warn("verification token taken during generation", "verification_token", req.VerificationToken)
			return nil, ErrTokenInUse
		}
		return nil, stepErr(StepRecord, err)
	}

	jobID, url, err := p.render(ctx, form, doc, now)
	if err != nil {
		return nil, stepErr(StepRender, err)
	}
	log.Info("assessment rendered", "job_id", jobID)

	if err := p.notifier.SendAssessmentReady(ctx, form.Email, form.Name, url); err != nil {
		return nil, stepErr(StepNotify, err)
	}

	return &Result{DownloadURL: url, JobID: jobID}, nil
}
