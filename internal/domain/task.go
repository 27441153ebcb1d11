package domain

import (
	"strings"
	"time"
)

// TaskKind enumerates supported generation task categories.
type TaskKind string

const (
	TaskKindChat  TaskKind = "chat"
	TaskKindImage TaskKind = "image"
	TaskKindVideo TaskKind = "video"
)

// TaskState enumerates task lifecycle states.
type TaskState string

const (
	TaskStateIdle      TaskState = "idle"
	TaskStateSubmitted TaskState = "submitted"
	TaskStatePolling   TaskState = "polling"
	TaskStateComplete  TaskState = "complete"
	TaskStateFailed    TaskState = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s TaskState) Terminal() bool {
	return s == TaskStateComplete || s == TaskStateFailed
}

// Active reports whether the task still owns its surface's slot.
func (s TaskState) Active() bool {
	return s == TaskStateSubmitted || s == TaskStatePolling
}

// GenerationTask encapsulates the lifecycle of one creative request.
type GenerationTask struct {
	ID            string      `json:"id"`
	Kind          TaskKind    `json:"kind"`
	Prompt        string      `json:"prompt"`
	AspectRatio   AspectRatio `json:"aspect_ratio,omitempty"`
	State         TaskState   `json:"state"`
	Result        string      `json:"result,omitempty"`
	ResultMIME    string      `json:"result_mime,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	StatusMessage string      `json:"status_message,omitempty"`
	Simulated     bool        `json:"simulated,omitempty"`
	EditError     string      `json:"edit_error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// AspectRatio is one of the frame shapes the generation service accepts.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "3:4"
	AspectLandscape AspectRatio = "4:3"
	AspectTall      AspectRatio = "9:16"
	AspectWide      AspectRatio = "16:9"
)

// ParseAspectRatio validates free-form input. An empty value yields fallback.
func ParseAspectRatio(value string, fallback AspectRatio) (AspectRatio, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	switch r := AspectRatio(value); r {
	case AspectSquare, AspectPortrait, AspectLandscape, AspectTall, AspectWide:
		return r, nil
	}
	return "", ErrInvalidAspectRatio
}

// OperationHandle references a long-running job executed by the generation
// service. It is only meaningful to the client that issued it.
type OperationHandle struct {
	Name string `json:"name"`
}

// OperationStatus is the normalized view of a polled operation.
type OperationStatus struct {
	Done         bool
	ResultURI    string
	ErrorMessage string
}
