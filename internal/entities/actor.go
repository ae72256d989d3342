package entities

import "github.com/aarondl/null/v8"

// Actor is whoever performs a ledger call. Authorization has already been
// decided by the caller; the ledger only records who acted. A nil *Actor means
// the system itself.
type Actor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	CanOverride bool   `json:"can_override"`
}

func (a *Actor) NullID() null.Int64 {
	if a == nil || a.ID == 0 {
		return null.Int64{}
	}
	return null.Int64From(a.ID)
}
