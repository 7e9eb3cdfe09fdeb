// Package taxonomy builds error identities, metadata, and the category and
// severity rule tables the intake pipeline classifies against.
package taxonomy

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewErrorID returns a unique error identifier. ULIDs encode a millisecond
// timestamp plus random entropy, so IDs sort by creation time.
func NewErrorID() string {
	return "err_" + ulid.Make().String()
}

// NewCorrelationID returns a fresh correlation identifier for linking related
// error contexts across a single host execution.
func NewCorrelationID() string {
	return uuid.NewString()
}
