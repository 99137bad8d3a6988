package domain

import "errors"

var (
	// ErrRenderFailed means the rendering backend reported failure or
	// returned a finished job without a download URL.
	ErrRenderFailed = errors.New("document render failed")
	// ErrRenderTimeout means the job was still unfinished when the poll
	// budget ran out.
	ErrRenderTimeout = errors.New("document render timed out")
)

// Render job statuses reported by the document service.
const (
	RenderPending    = "pending"
	RenderGenerating = "generating"
	RenderSuccess    = "success"
	RenderFailure    = "failure"
)

// RenderRequest is the payload snapshot submitted for one PDF.
type RenderRequest struct {
	TemplateID  string    `json:"-"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	CompanySize string    `json:"company_size"`
	ITChallenge string    `json:"it_challenge"`
	ITSetup     string    `json:"it_setup"`
	Date        string    `json:"date"`
	Sections    []Section `json:"assessmentSections"`
}

type RenderJob struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	FailureNote string `json:"failure_cause,omitempty"`
}
