package domain

import "strings"

// Ref identifies a backend record either by a persisted id or by a
// forward reference to a record created earlier in the same graph.
// The zero Ref refers to nothing.
type Ref struct {
	id    string
	refID string
}

// KnownRef points at an already persisted record.
func KnownRef(id string) Ref {
	return Ref{id: strings.TrimSpace(id)}
}

// PendingRef points at a record that only exists inside the graph
// being submitted, by its reference id.
func PendingRef(referenceID string) Ref {
	return Ref{refID: strings.TrimSpace(referenceID)}
}

func (r Ref) IsZero() bool {
	return r.id == "" && r.refID == ""
}

// Known returns the persisted id, if any.
func (r Ref) Known() (string, bool) {
	return r.id, r.id != ""
}

// Pending returns the in-graph reference id, if any.
func (r Ref) Pending() (string, bool) {
	return r.refID, r.id == "" && r.refID != ""
}
