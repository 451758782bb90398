package models

import "time"

// FormSubmission is a validated form payload in transit to a backend
// function or webhook. Submissions are transient: constructed, validated,
// sent, then discarded. They are never persisted by this service.
type FormSubmission struct {
	ID          string            `json:"id"`
	EndpointID  string            `json:"endpointId"`
	Fields      map[string]string `json:"fields"`
	Source      string            `json:"source"`
	SubmittedAt time.Time         `json:"submittedAt"`
}
