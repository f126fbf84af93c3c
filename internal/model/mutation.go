package model

import (
	"encoding/json"
	"time"
)

// Mutation is a committed local write waiting to be replayed against the
// server by the sync engine. Name is the mutator name, Args its JSON input.
type Mutation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Mutator names recorded in the pending queue.
const (
	MutatorSetSession   = "setSession"
	MutatorClearSession = "clearSession"
	MutatorUpdateUser   = "updateUser"
	MutatorCreateAsset  = "createAsset"
	MutatorUpdateAsset  = "updateAsset"
	MutatorDeleteAsset  = "deleteAsset"
)
