package ai

import (
	"fmt"
	"strings"

	"assessment-generator/internal/model"
)

const systemPrompt = `You are a senior IT consultant writing short, practical IT assessments for small and mid-sized businesses.
You MUST return ONLY a single JSON object and NOTHING ELSE: no commentary, no markdown, no code fences.`

const outputContract = `Return a JSON object with exactly these keys:
{
  "company": "<company name>",
  "company_size": "<company size>",
  "it_challenge": "<stated challenge>",
  "assessmentSections": [
    {"title": "Overview", "content": "<2-3 sentences about the company's situation>"},
    {"title": "Challenge Analysis", "content": "<analysis of the stated challenge and its business impact>"},
    {"title": "Recommendations", "content": [
      {"step": 1, "action": "<concrete action>"},
      {"step": 2, "action": "<concrete action>"}
    ]},
    {"title": "Next Steps", "content": "<what to do in the next 30 days>"}
  ]
}
Rules:
 - assessmentSections has exactly four entries, in the order shown, with these exact titles.
 - Recommendations content is an array of 3 to 5 {step, action} objects numbered from 1.
 - Every other content value is a plain string.`

// SystemPrompt is the fixed system message sent with every assessment
// request.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt renders the user message for one submission. Field values are
// expected to be sanitized already.
func BuildPrompt(form model.FormSubmission, organisation string) string {
	var b strings.Builder
	b.WriteString("Write an IT assessment for the following business.\n\n")
	fmt.Fprintf(&b, "Contact name: %s\n", form.Name)
	fmt.Fprintf(&b, "Company: %s\n", form.Company)
	fmt.Fprintf(&b, "Company size: %s employees\n", form.CompanySize)
	fmt.Fprintf(&b, "Main IT challenge: %s\n", form.ITChallenge)
	if form.ITSetup != "" {
		fmt.Fprintf(&b, "Current IT setup: %s\n", form.ITSetup)
	} else {
		b.WriteString("Current IT setup: not provided\n")
	}
	if organisation != "" {
		fmt.Fprintf(&b, "\nThe assessment is offered by %s; Next Steps may suggest booking a call with them.\n", organisation)
	}
	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}
