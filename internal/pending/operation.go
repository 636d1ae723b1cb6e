// Package pending holds the durable queue of mutations that still await
// confirmation from the remote store.
package pending

import (
	"encoding/json"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/fin-keeper/internal/model"
)

// OpType is the kind of queued mutation.
type OpType string

const (
	OpAdd    OpType = "add"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Valid reports whether t is a known operation type.
func (t OpType) Valid() bool {
	switch t {
	case OpAdd, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Operation is one queued mutation. Records are never modified after creation.
type Operation struct {
	ID            string           `json:"id"`
	OperationType OpType           `json:"operationType"`
	Collection    model.Collection `json:"collection"`
	// Data is the full entity for add/update and the entity id (a JSON string) for delete.
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	// UserID is the session owner at enqueue time; uuid.Nil for records
	// written before owners were recorded.
	UserID uuid.UUID `json:"userId,omitzero"`
}

// OwnedBy reports whether the record may be replayed for user. Records
// without an owner belong to whoever is signed in.
func (o Operation) OwnedBy(user uuid.UUID) bool {
	return o.UserID == uuid.Nil || o.UserID == user
}

// ItemID extracts the target id from Data: either {"id": ...} or a bare string.
func (o Operation) ItemID() string {
	var s string
	if err := json.Unmarshal(o.Data, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(o.Data, &obj); err == nil {
		return obj.ID
	}
	return ""
}
