package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"assessment-generator/internal/domain"
	"assessment-generator/internal/model"
)

type fakeCaptcha struct {
	mu    sync.Mutex
	ok    bool
	err   error
	calls int
}

func (f *fakeCaptcha) Verify(context.Context, string, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.ok, f.err
}

// memStore keeps subscribers in memory with the same swap semantics as
// the real stores.
type memStore struct {
	mu        sync.Mutex
	byEmail   map[string]*domain.Subscriber
	findErr   error
	upsertErr error
	casErr    error
	// beforeSwap runs inside CompareAndSwapGenerated before the comparison.
	beforeSwap func()

	finds, swaps, upserts int
}

func newMemStore(subs ...*domain.Subscriber) *memStore {
	s := &memStore{byEmail: map[string]*domain.Subscriber{}}
	for _, sub := range subs {
		s.byEmail[sub.Email] = sub
	}
	return s
}

func (s *memStore) lookup(token string) *domain.Subscriber {
	for _, sub := range s.byEmail {
		if sub.VerificationToken == token {
			return sub
		}
	}
	return nil
}

func (s *memStore) FindByToken(_ context.Context, token string) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	sub := s.lookup(token)
	if sub == nil {
		return nil, nil
	}
	cp := *sub
	cp.LeadMagnets = map[string]string{}
	for k, v := range sub.LeadMagnets {
		cp.LeadMagnets[k] = v
	}
	return &cp, nil
}

func (s *memStore) CompareAndSwapGenerated(_ context.Context, token, magnet string, expected, next *string) (bool, error) {
	if s.beforeSwap != nil {
		s.beforeSwap()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swaps++
	if s.casErr != nil {
		return false, s.casErr
	}
	sub := s.lookup(token)
	if sub == nil {
		return false, nil
	}
	cur, present := sub.LeadMagnets[magnet]
	switch {
	case expected == nil && present, expected != nil && (!present || cur != *expected):
		return false, nil
	}
	if sub.LeadMagnets == nil {
		sub.LeadMagnets = map[string]string{}
	}
	if next == nil {
		delete(sub.LeadMagnets, magnet)
	} else {
		sub.LeadMagnets[magnet] = *next
	}
	return true, nil
}

func (s *memStore) UpsertGenerated(_ context.Context, email, token, magnet string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	sub, ok := s.byEmail[email]
	if !ok || sub.VerificationToken == "" {
		if owner := s.lookup(token); token != "" && owner != nil && owner.Email != email {
			return domain.ErrTokenInUse
		}
	}
	if !ok {
		sub = &domain.Subscriber{Email: email, VerificationToken: token, LeadMagnets: map[string]string{}}
		s.byEmail[email] = sub
	}
	if sub.VerificationToken == "" {
		sub.VerificationToken = token
	}
	if sub.LeadMagnets == nil {
		sub.LeadMagnets = map[string]string{}
	}
	sub.LeadMagnets[magnet] = domain.FormatTimestamp(at)
	return nil
}

func (s *memStore) magnet(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byEmail[email]
	if !ok {
		return "", false
	}
	v, ok := sub.LeadMagnets[defaultLeadMagnet]
	return v, ok
}

type fakeGenerator struct {
	doc   *domain.AssessmentDocument
	err   error
	calls int
	got   model.FormSubmission
}

func (f *fakeGenerator) Generate(_ context.Context, form model.FormSubmission) (*domain.AssessmentDocument, error) {
	f.calls++
	f.got = form
	return f.doc, f.err
}

type fakeRenderer struct {
	submitErr   error
	url         string
	urlErr      error
	submits     int
	urlFetches  int
	lastRequest domain.RenderRequest
}

func (f *fakeRenderer) Submit(_ context.Context, req domain.RenderRequest) (*domain.RenderJob, error) {
	f.submits++
	f.lastRequest = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.RenderJob{ID: "job-1", Status: domain.RenderPending}, nil
}

func (f *fakeRenderer) DownloadURL(context.Context, string) (string, error) {
	f.urlFetches++
	return f.url, f.urlErr
}

type fakeNotifier struct {
	err   error
	calls int
	to    string
	name  string
	url   string
}

func (f *fakeNotifier) SendAssessmentReady(_ context.Context, to, name, url string) error {
	f.calls++
	f.to, f.name, f.url = to, name, url
	return f.err
}

var errUpstream = errors.New("upstream unavailable")
