package challenge

import (
	"errors"
	"time"
)

// Status is terminal after the first response; a challenge is never mutated
// again once accepted or declined.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Challenge is stored as JSON in redis under arena:challenge:<id>.
type Challenge struct {
	ID             string    `json:"id"`
	ChallengerID   string    `json:"challenger_id"`
	ChallengerName string    `json:"challenger_name"`
	ChallengedID   string    `json:"challenged_id"`
	ChallengedName string    `json:"challenged_name"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

var (
	ErrInvalidArgs = errors.New("invalid challenge arguments")
	// a pending challenge or ongoing game already exists for the pair,
	// or the challenge was already responded to
	ErrConflict = errors.New("challenge conflict")
	ErrNotFound = errors.New("challenge not found")
)
