package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assessment-generator/internal/domain"
	"assessment-generator/internal/model"
)

// validateForm normalizes, validates and finally sanitizes the form in
// place. Field errors win over the coarse missing-field check.
func validateForm(f *model.FormSubmission) error {
	f.Normalize()
	if errs := f.Validate(); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	if f.MissingRequired() {
		return ErrMissingFields
	}
	f.Sanitize()
	return nil
}

// checkBot rejects filled honeypots without touching the captcha service.
func (p *Processor) checkBot(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Honeypot) != "" {
		return ErrBotDetected
	}
	if strings.TrimSpace(req.RecaptchaToken) == "" {
		return ErrCaptchaRejected
	}
	ok, err := p.captcha.Verify(ctx, req.RecaptchaToken, req.RemoteIP)
	if err != nil {
		return stepErr(StepCaptcha, err)
	}
	if !ok {
		return ErrCaptchaRejected
	}
	return nil
}

// throttleClaim holds the throttle slot taken for one token.
type throttleClaim struct {
	token    string
	previous *string
	current  *string
}

// claim reads the token's record and, if the window allows, swaps the
// stored timestamp from the value read to now. Losing the swap means a
// concurrent request got there first. A token with no record yields a
// nil claim and the later upsert creates the record. A token whose record
// belongs to a different e-mail address is refused before anything else
// runs. owner is the record's address as stored.
func (p *Processor) claim(ctx context.Context, token, email string, now time.Time) (*throttleClaim, string, error) {
	if token == "" {
		return nil, "", nil
	}
	sub, err := p.store.FindByToken(ctx, token)
	if err != nil {
		return nil, "", stepErr(StepLookup, err)
	}
	if sub == nil {
		return nil, "", nil
	}
	if !sub.Owns(email) {
		return nil, "", ErrTokenInUse
	}
	owner := sub.Email

	if at, _, ok := sub.GeneratedAt(p.magnet); ok && now.Sub(at) <= p.window {
		return nil, owner, ErrAlreadyGenerated
	}

	var previous *string
	if v, ok := sub.LeadMagnets[p.magnet]; ok {
		previous = &v
	}
	next := domain.FormatTimestamp(now)

	swapped, err := p.store.CompareAndSwapGenerated(ctx, token, p.magnet, previous, &next)
	if err != nil {
		return nil, owner, stepErr(StepClaim, err)
	}
	if !swapped {
		return nil, owner, ErrAlreadyGenerated
	}
	return &throttleClaim{token: token, previous: previous, current: &next}, owner, nil
}

// release undoes a claim whose request failed before the state update.
func (p *Processor) release(ctx context.Context, c *throttleClaim) {
	if c == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	ok, err := p.store.CompareAndSwapGenerated(ctx, c.token, p.magnet, c.current, c.previous)
	if err != nil {
		p.log.Error("failed to release throttle claim", "verification_token", c.token, "error", err)
		return
	}
	if !ok {
		p.log.Warn("throttle claim changed before release", "verification_token", c.token)
	}
}

func (p *Processor) render(ctx context.Context, form model.FormSubmission, doc *domain.AssessmentDocument, now time.Time) (string, string, error) {
	job, err := p.renderer.Submit(ctx, domain.RenderRequest{
		TemplateID:  p.templateID,
		Name:        form.Name,
		Company:     form.Company,
		CompanySize: form.CompanySize,
		ITChallenge: form.ITChallenge,
		ITSetup:     form.ITSetup,
		Date:        now.Format("January 2, 2006"),
		Sections:    doc.Sections,
	})
	if err != nil {
		return "", "", err
	}

	url, err := p.renderer.DownloadURL(ctx, job.ID)
	if err != nil {
		return job.ID, "", err
	}
	if url == "" {
		return job.ID, "", fmt.Errorf("%w: empty download url for job %s", ErrRenderFailed, job.ID)
	}
	return job.ID, url, nil
}
