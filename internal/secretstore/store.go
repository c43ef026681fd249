// Package secretstore abstracts the external key/value secret service the
// signing key can be loaded from. The core only depends on the narrow Store
// contract; the HTTP client below is one interchangeable implementation.
package secretstore

import "context"

// Store is the contract the key loader and rotation tooling depend on.
//
// Get after a successful Put with the same name returns the identical value.
// Rotate writes the new value under a fresh name and leaves the previous name
// addressable, so a deployment can roll back until the old name is explicitly
// retired by an operator.
type Store interface {
	Put(ctx context.Context, name string, value string) error
	Get(ctx context.Context, name string) (string, error)
	Rotate(ctx context.Context, newValue string, previousName string) (newName string, err error)
}
