package infrastructure

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"html/template"

	"assessment-generator/internal/domain"
)

//go:embed templates/assessment.html
var assessmentTemplate string

var assessmentTpl = template.Must(template.New("assessment").Parse(assessmentTemplate))

// RenderAssessmentHTML fills the assessment template. Form fields arrive
// HTML-escaped and are unescaped first so the template escapes them once.
func RenderAssessmentHTML(req domain.RenderRequest) (string, error) {
	data := req
	data.Name = html.UnescapeString(req.Name)
	data.Company = html.UnescapeString(req.Company)
	data.CompanySize = html.UnescapeString(req.CompanySize)
	data.ITChallenge = html.UnescapeString(req.ITChallenge)
	data.ITSetup = html.UnescapeString(req.ITSetup)

	var buf bytes.Buffer
	if err := assessmentTpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering assessment template: %w", err)
	}
	return buf.String(), nil
}
