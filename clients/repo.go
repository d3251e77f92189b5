package clients

import "errors"

// ErrNotFound is returned by a Registry when no client matches the id.
var ErrNotFound = errors.New("client not found")

// Registry is the lookup contract the engine consumes. Client records are
// administered externally; this engine never creates or mutates them.
type Registry interface {
	FindByID(id string) (*Client, error)
}
