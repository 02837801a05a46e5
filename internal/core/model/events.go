package model

import "time"

// ErrorRecord is one deduplicated host-page error attributed to a view.
type ErrorRecord struct {
	Source    string    `json:"source"` // error, unhandledrejection, console
	Type      string    `json:"error_type,omitempty"`
	Message   string    `json:"message"`
	File      string    `json:"file,omitempty"`
	Line      int       `json:"line,omitempty"`
	Stack     string    `json:"stack,omitempty"`
	Hash      string    `json:"hash"`
	Count     int       `json:"count"` // occurrences folded into this record
	Timestamp time.Time `json:"timestamp"`
}

// EventRecord is one discrete tracked event attributed to a view.
type EventRecord struct {
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}
