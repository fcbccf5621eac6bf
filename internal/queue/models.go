package queue

import "time"

// OutcomeEvent is emitted once per request after it reaches a terminal state
type OutcomeEvent struct {
	RequestID  string    `json:"request_id"`
	UserID     int64     `json:"user_id"`
	ChatID     int64     `json:"chat_id"`
	InputKind  string    `json:"input_kind"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Title      string    `json:"title,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}
