package domain

import "time"

// Session is an AI chat session escalated to the human queue.
type Session struct {
	ID          string
	CustomerID  string
	Category    string
	Keywords    []string
	Text        string
	Reason      string
	EscalatedAt time.Time
}
