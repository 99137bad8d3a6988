package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Section titles, in the order the document must carry them.
const (
	SectionOverview          = "Overview"
	SectionChallengeAnalysis = "Challenge Analysis"
	SectionRecommendations   = "Recommendations"
	SectionNextSteps         = "Next Steps"
)

// SectionTitles lists the four assessment sections in document order.
var SectionTitles = []string{
	SectionOverview,
	SectionChallengeAnalysis,
	SectionRecommendations,
	SectionNextSteps,
}

type AssessmentDocument struct {
	Company     string    `json:"company"`
	CompanySize string    `json:"company_size"`
	ITChallenge string    `json:"it_challenge"`
	Sections    []Section `json:"assessmentSections"`
}

type RecommendationStep struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
}

// Section is one titled block of the assessment. The Recommendations
// section carries Steps; every other section carries Text. On the wire both
// live under "content".
type Section struct {
	Title string
	Text  string
	Steps []RecommendationStep
}

type sectionWire struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
}

func (s Section) MarshalJSON() ([]byte, error) {
	var content interface{} = s.Text
	if s.Steps != nil {
		content = s.Steps
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sectionWire{Title: s.Title, Content: raw})
}

func (s *Section) UnmarshalJSON(b []byte) error {
	var w sectionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.Title = w.Title
	s.Text = ""
	s.Steps = nil

	content := bytes.TrimSpace(w.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil
	}
	switch content[0] {
	case '[':
		return json.Unmarshal(content, &s.Steps)
	case '"':
		return json.Unmarshal(content, &s.Text)
	default:
		return fmt.Errorf("section %q: unsupported content type", w.Title)
	}
}

// Section returns the section with the given title, or nil.
func (d *AssessmentDocument) Section(title string) *Section {
	for i := range d.Sections {
		if d.Sections[i].Title == title {
			return &d.Sections[i]
		}
	}
	return nil
}
