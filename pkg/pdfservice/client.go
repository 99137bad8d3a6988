package pdfservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"assessment-generator/internal/config"
	"assessment-generator/internal/domain"
	"assessment-generator/pkg/logger"
)

// Client submits documents to the remote rendering service and resolves
// their download URLs.
type Client interface {
	Submit(ctx context.Context, req domain.RenderRequest) (*domain.RenderJob, error)
	DownloadURL(ctx context.Context, jobID string) (string, error)
}

type clientImpl struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	pollInitial time.Duration
	pollMax     time.Duration
	timeout     time.Duration
	log         *logger.Logger
}

var errNotReady = errors.New("document not ready")

// NewClient creates a new rendering service client
func NewClient(httpClient *http.Client, cfg config.RendererConfig, log *logger.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &clientImpl{
		http:        httpClient,
		baseURL:     strings.TrimRight(cfg.ServiceURL, "/"),
		apiKey:      cfg.APIKey,
		pollInitial: cfg.PollInitial,
		pollMax:     cfg.PollMaxInterval,
		timeout:     cfg.Timeout,
		log:         log,
	}
}

type documentEnvelope struct {
	Document documentBody `json:"document"`
}

type documentBody struct {
	ID                 string                `json:"id,omitempty"`
	DocumentTemplateID string                `json:"document_template_id,omitempty"`
	Payload            *domain.RenderRequest `json:"payload,omitempty"`
	Status             string                `json:"status,omitempty"`
	DownloadURL        string                `json:"download_url,omitempty"`
	FailureCause       string                `json:"failure_cause,omitempty"`
}

func (c *clientImpl) Submit(ctx context.Context, req domain.RenderRequest) (*domain.RenderJob, error) {
	body, err := json.Marshal(documentEnvelope{Document: documentBody{
		DocumentTemplateID: req.TemplateID,
		Payload:            &req,
		Status:             domain.RenderPending,
	}})
	if err != nil {
		return nil, err
	}

	var out documentEnvelope
	if err := c.do(ctx, http.MethodPost, "/documents", body, &out); err != nil {
		return nil, fmt.Errorf("error submitting render job: %w", err)
	}
	if out.Document.ID == "" {
		return nil, errors.New("render service returned no document id")
	}
	c.log.Info("render job submitted", "job_id", out.Document.ID, "status", out.Document.Status)
	return toJob(out.Document), nil
}

// DownloadURL polls the job with exponential backoff until it succeeds,
// fails or the configured timeout elapses. It never returns an empty URL.
func (c *clientImpl) DownloadURL(ctx context.Context, jobID string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInitial
	b.MaxInterval = c.pollMax

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	op := func() (string, error) {
		var out documentEnvelope
		if err := c.do(ctx, http.MethodGet, "/documents/"+jobID, nil, &out); err != nil {
			return "", backoff.Permanent(err)
		}
		job := toJob(out.Document)
		switch job.Status {
		case domain.RenderSuccess:
			if job.DownloadURL == "" {
				return "", backoff.Permanent(fmt.Errorf("%w: job %s has no download url", domain.ErrRenderFailed, jobID))
			}
			return job.DownloadURL, nil
		case domain.RenderFailure:
			return "", backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrRenderFailed, job.FailureNote))
		default:
			c.log.Debug("render job not ready", "job_id", jobID, "status", job.Status)
			return "", errNotReady
		}
	}

	url, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(c.timeout))
	switch {
	case err == nil:
		return url, nil
	case errors.Is(err, errNotReady), errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("%w: job %s", domain.ErrRenderTimeout, jobID)
	default:
		return "", err
	}
}

func (c *clientImpl) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("render service returned status %d: %s", resp.StatusCode, truncate(string(rb), 200))
	}
	return json.Unmarshal(rb, out)
}

func toJob(d documentBody) *domain.RenderJob {
	return &domain.RenderJob{
		ID:          d.ID,
		Status:      d.Status,
		DownloadURL: d.DownloadURL,
		FailureNote: d.FailureCause,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
