package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/gyeh/medbill/internal/model"
)

const fence = "```"

// ParseAssessment returns the assessment embedded in an interviewer
// message as a ```json fenced block, or nil when there is none. A block
// that does not parse, or that does not declare assessment_complete as
// true, is treated as ordinary prose.
func ParseAssessment(text string) *model.Assessment {
	start := strings.Index(text, fence+"json")
	if start < 0 || !strings.Contains(text, "assessment_complete") {
		return nil
	}
	body := text[start+len(fence+"json"):]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}

	var a model.Assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &a); err != nil {
		return nil
	}
	if !a.AssessmentComplete {
		return nil
	}
	return &a
}
