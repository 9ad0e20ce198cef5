package model

import "time"

// Source tags identify which front end produced a persisted entry.
const (
	SourceWeb      = "web-indexlegal-integrated"
	SourceTerminal = "terminal-user"
)

// Entry is an immutable record appended to the analysis log.
type Entry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Analysis  Analysis  `json:"analysis"`
	CreatedAt time.Time `json:"created_at"`
}
