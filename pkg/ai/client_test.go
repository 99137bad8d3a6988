package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-generator/internal/config"
	"assessment-generator/internal/domain"
	"assessment-generator/internal/model"
)

type fakeCompleter struct {
	out    string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.out, f.err
}

const validReply = `{
  "company": "Acme",
  "company_size": "11-50",
  "it_challenge": "Backups",
  "assessmentSections": [
    {"title": "Overview", "content": "Acme is growing."},
    {"title": "Challenge Analysis", "content": "Backups are manual."},
    {"title": "Recommendations", "content": [{"step": 1, "action": "Automate backups"}, {"step": 2, "action": "Test restores"}]},
    {"title": "Next Steps", "content": "Book a call."}
  ]
}`

func testForm() model.FormSubmission {
	yes := true
	return model.FormSubmission{
		Name:        "Jane",
		Email:       "jane@example.com",
		Company:     "Acme",
		CompanySize: "11-50",
		ITChallenge: "Backups",
		ITSetup:     "NAS in a cupboard",
		Consent:     &yes,
	}
}

func TestGenerateParsesValidReply(t *testing.T) {
	fc := &fakeCompleter{out: "```json\n" + validReply + "\n```"}
	c := NewClient(fc, config.LLMConfig{Organisation: "Northwind IT"}, nil)

	got, err := c.Generate(context.Background(), testForm())
	require.NoError(t, err)
	assert.Equal(t, 1, fc.calls)

	assert.Equal(t, "Acme", got.Company)
	require.Len(t, got.Sections, 4)
	rec := got.Section(domain.SectionRecommendations)
	require.NotNil(t, rec)
	assert.Equal(t, []domain.RecommendationStep{{Step: 1, Action: "Automate backups"}, {Step: 2, Action: "Test restores"}}, rec.Steps)

	assert.Equal(t, SystemPrompt(), fc.system)
	assert.Contains(t, fc.user, "Company: Acme")
	assert.Contains(t, fc.user, "Current IT setup: NAS in a cupboard")
	assert.Contains(t, fc.user, "Northwind IT")
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCompleter
		is   error
	}{
		{"completion fails", &fakeCompleter{err: errors.New("upstream down")}, nil},
		{"no json", &fakeCompleter{out: "sorry, no"}, ErrNoJSON},
		{"schema violation", &fakeCompleter{out: `{"company":"Acme"}`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.fc, config.LLMConfig{}, nil).Generate(context.Background(), testForm())
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestBuildPromptWithoutSetup(t *testing.T) {
	f := testForm()
	f.ITSetup = ""
	p := BuildPrompt(f, "")
	assert.Contains(t, p, "Current IT setup: not provided")
	assert.NotContains(t, p, "offered by")
	for _, title := range domain.SectionTitles {
		assert.Contains(t, p, title)
	}
}
