// Package models provides the domain types shared across the agent
// execution engine: sessions, events, plans, memory messages, and files.
package models

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionRunning   SessionStatus = "RUNNING"
	SessionWaiting   SessionStatus = "WAITING"
	SessionCompleted SessionStatus = "COMPLETED"
)

// Session is the conversation thread that owns a bounded, ordered event
// history, an optional live Task, an optional Sandbox, per-agent memory,
// and uploaded files.
type Session struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Status          SessionStatus        `json:"status"`
	LatestMessage   string               `json:"latest_message"`
	LatestMessageAt time.Time            `json:"latest_message_at"`
	UnreadCount     int                  `json:"unread_count"`
	TaskID          string               `json:"task_id,omitempty"`
	SandboxID       string               `json:"sandbox_id,omitempty"`
	ParentSessionID string               `json:"parent_session_id,omitempty"`
	Events          []Event              `json:"events"`
	Files           []File               `json:"files"`
	Memories        map[string][]ChatMessage `json:"memories"`
	Plans           []*Plan              `json:"plans"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// File describes an attachment owned by a Session.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ExternalKey string `json:"external_key"`
	Extension   string `json:"extension"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`

	// Filepath is the absolute path inside the sandbox, set once the file
	// has been synced into the session's sandbox session.
	Filepath string `json:"filepath,omitempty"`
}
