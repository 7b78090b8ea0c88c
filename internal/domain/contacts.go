package domain

import "context"

// Contact is a directory entry.
type Contact struct {
	ID    string
	Name  string
	Email string
}

// Directory is the external contacts boundary. Search returns an empty
// slice for "nobody by that name"; errors are reserved for transport
// failures, and callers treat both the same way.
type Directory interface {
	Search(ctx context.Context, name string) ([]Contact, error)
	Create(ctx context.Context, name, email string) error
}
