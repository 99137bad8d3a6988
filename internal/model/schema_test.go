package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const validAssessment = `{
  "company": "Acme",
  "company_size": "11-50",
  "it_challenge": "Backups",
  "assessmentSections": [
    {"title": "Overview", "content": "Acme is a growing firm."},
    {"title": "Challenge Analysis", "content": "Backups are manual."},
    {"title": "Recommendations", "content": [{"step": 1, "action": "Automate backups"}, {"step": 2, "action": "Test restores"}]},
    {"title": "Next Steps", "content": "Book a call."}
  ]
}`

func TestValidateAssessmentAcceptsWellFormedDocument(t *testing.T) {
	assert.NoError(t, ValidateAssessment([]byte(validAssessment)))
}

func TestValidateAssessmentRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing company", `{"company_size":"1-10","it_challenge":"x","assessmentSections":[]}`},
		{"three sections", `{"company":"A","company_size":"1-10","it_challenge":"x","assessmentSections":[
			{"title":"Overview","content":"a"},
			{"title":"Challenge Analysis","content":"b"},
			{"title":"Recommendations","content":[{"step":1,"action":"c"}]}]}`},
		{"sections out of order", `{"company":"A","company_size":"1-10","it_challenge":"x","assessmentSections":[
			{"title":"Challenge Analysis","content":"b"},
			{"title":"Overview","content":"a"},
			{"title":"Recommendations","content":[{"step":1,"action":"c"}]},
			{"title":"Next Steps","content":"d"}]}`},
		{"recommendations as text", `{"company":"A","company_size":"1-10","it_challenge":"x","assessmentSections":[
			{"title":"Overview","content":"a"},
			{"title":"Challenge Analysis","content":"b"},
			{"title":"Recommendations","content":"do things"},
			{"title":"Next Steps","content":"d"}]}`},
		{"step without action", `{"company":"A","company_size":"1-10","it_challenge":"x","assessmentSections":[
			{"title":"Overview","content":"a"},
			{"title":"Challenge Analysis","content":"b"},
			{"title":"Recommendations","content":[{"step":1}]},
			{"title":"Next Steps","content":"d"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssessment([]byte(tt.doc))
			assert.ErrorContains(t, err, "schema validation failed")
		})
	}
}

func TestValidateAssessmentRejectsNonJSON(t *testing.T) {
	assert.Error(t, ValidateAssessment([]byte("not json")))
}
