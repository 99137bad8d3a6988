package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"assessment-generator/internal/config"
	"assessment-generator/internal/domain"
	"assessment-generator/pkg/logger"
)

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

// LocalRenderer renders assessments in-process and serves the files itself.
// Submit renders synchronously, so a job is finished by the time its id is
// returned.
type LocalRenderer struct {
	pdf     PDFRenderer
	dir     string
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger

	mu   sync.Mutex
	jobs map[string]localJob
}

type localJob struct {
	job *domain.RenderJob
	at  time.Time
}

// staleJobAge bounds how long a finished job nobody asked about is kept
// when no link TTL is configured.
const staleJobAge = time.Hour

func NewLocalRenderer(pdf PDFRenderer, cfg config.RendererConfig, publicBaseURL string, log *logger.Logger) (*LocalRenderer, error) {
	if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating render directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LocalRenderer{
		pdf:     pdf,
		dir:     cfg.LocalDir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		ttl:     cfg.LinkTTL,
		now:     time.Now,
		log:     log,
		jobs:    map[string]localJob{},
	}, nil
}

func (r *LocalRenderer) Submit(ctx context.Context, req domain.RenderRequest) (*domain.RenderJob, error) {
	id := uuid.NewString()
	job := &domain.RenderJob{ID: id, Status: domain.RenderGenerating}
	r.setJob(job)

	if err := r.render(ctx, id, req); err != nil {
		r.setJob(&domain.RenderJob{ID: id, Status: domain.RenderFailure, FailureNote: err.Error()})
		r.log.Error("local render failed", "job_id", id, "error", err)
		return &domain.RenderJob{ID: id, Status: domain.RenderFailure, FailureNote: err.Error()}, nil
	}

	done := &domain.RenderJob{ID: id, Status: domain.RenderSuccess, DownloadURL: r.baseURL + "/downloads/" + id + ".pdf"}
	r.setJob(done)
	r.log.Info("local render finished", "job_id", id)
	return &domain.RenderJob{ID: id, Status: domain.RenderPending}, nil
}

func (r *LocalRenderer) render(ctx context.Context, id string, req domain.RenderRequest) error {
	doc, err := RenderAssessmentHTML(req)
	if err != nil {
		return err
	}
	pdf, err := r.pdf.RenderHTMLToPDF(ctx, doc)
	if err != nil {
		return fmt.Errorf("error printing pdf: %w", err)
	}
	return os.WriteFile(filepath.Join(r.dir, id+".pdf"), pdf, 0o644)
}

// DownloadURL reports the outcome of a finished job and forgets it. The
// file itself stays on disk until its link expires.
func (r *LocalRenderer) DownloadURL(ctx context.Context, jobID string) (string, error) {
	r.mu.Lock()
	entry, ok := r.jobs[jobID]
	job := entry.job
	if ok && (job.Status == domain.RenderSuccess || job.Status == domain.RenderFailure) {
		delete(r.jobs, jobID)
	}
	r.mu.Unlock()

	switch {
	case !ok:
		return "", fmt.Errorf("%w: unknown job %s", domain.ErrRenderFailed, jobID)
	case job.Status == domain.RenderFailure:
		return "", fmt.Errorf("%w: %s", domain.ErrRenderFailed, job.FailureNote)
	case job.Status != domain.RenderSuccess || job.DownloadURL == "":
		return "", fmt.Errorf("%w: job %s", domain.ErrRenderTimeout, jobID)
	}
	return job.DownloadURL, nil
}

func (r *LocalRenderer) setJob(job *domain.RenderJob) {
	r.mu.Lock()
	r.jobs[job.ID] = localJob{job: job, at: r.now()}
	r.mu.Unlock()
}

// Resolve maps a download file name to its path on disk. Expired files
// are removed and reported as not existing.
func (r *LocalRenderer) Resolve(file string) (string, error) {
	id := strings.TrimSuffix(file, ".pdf")
	if id == file {
		return "", os.ErrNotExist
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", os.ErrNotExist
	}

	path := filepath.Join(r.dir, id+".pdf")
	info, err := os.Stat(path)
	if err != nil {
		return "", os.ErrNotExist
	}
	if r.expired(info.ModTime()) {
		r.remove(id, path)
		return "", os.ErrNotExist
	}
	return path, nil
}

// Sweep deletes every expired file and returns how many were removed. Job
// entries that were never read back are dropped once they are stale.
func (r *LocalRenderer) Sweep() (int, error) {
	r.pruneJobs()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if r.expired(info.ModTime()) {
			r.remove(strings.TrimSuffix(e.Name(), ".pdf"), filepath.Join(r.dir, e.Name()))
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *LocalRenderer) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := r.Sweep(); err != nil {
				r.log.Warn("sweep of expired assessments failed", "error", err)
			} else if n > 0 {
				r.log.Info("expired assessments removed", "count", n)
			}
		}
	}
}

func (r *LocalRenderer) pruneJobs() {
	maxAge := r.ttl
	if maxAge <= 0 {
		maxAge = staleJobAge
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.jobs {
		if now.Sub(e.at) > maxAge {
			delete(r.jobs, id)
		}
	}
}

func (r *LocalRenderer) expired(mod time.Time) bool {
	return r.ttl > 0 && r.now().Sub(mod) > r.ttl
}

func (r *LocalRenderer) remove(id, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn("failed to remove expired assessment", "file", path, "error", err)
	}
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}
