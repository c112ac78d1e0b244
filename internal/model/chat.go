package model

import "encoding/json"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one interview turn.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Assessment is the structured summary the interviewer emits once it has
// gathered enough information. Entries are kept as raw JSON because their
// shape is chosen by the interviewer.
type Assessment struct {
	AssessmentComplete     bool              `json:"assessment_complete"`
	ConfirmedDiscrepancies []json.RawMessage `json:"confirmed_discrepancies"`
	NewConcerns            []json.RawMessage `json:"new_concerns"`
	ClearedItems           []json.RawMessage `json:"cleared_items"`
}
