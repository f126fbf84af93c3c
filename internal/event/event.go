package event

import "time"

type Type string

const (
	TypeCommitted Type = "store.committed"
)

// Event describes one committed local store transaction.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Store     string    `json:"store"`
	Mutation  string    `json:"mutation,omitempty"` // mutator name
	Keys      []string  `json:"keys"`               // keys written or deleted
	Timestamp time.Time `json:"timestamp"`
}

