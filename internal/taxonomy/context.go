package taxonomy

import (
	"encoding/json"
	"fmt"

	"github.com/ballast-systems/ballast/pkg/types"
)

// NewErrorContext builds the full record for one detected failure.
func NewErrorContext(failure types.FailureInfo, message string, metadata types.ErrorMetadata) *types.ErrorContext {
	if message == "" {
		message = failure.Message
	}
	return &types.ErrorContext{
		Failure:  failure,
		Message:  message,
		Metadata: metadata,
	}
}

// EncodeContext serializes an error context to JSON. Category and severity
// are written as their string tags.
func EncodeContext(ec *types.ErrorContext) ([]byte, error) {
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("encoding error context: %w", err)
	}
	return data, nil
}

// DecodeContext deserializes an error context from JSON. The round-trip is
// lossless except for the originating failure's concrete type: only its name,
// message, and arguments are reconstructed, never the live value.
func DecodeContext(data []byte) (*types.ErrorContext, error) {
	var ec types.ErrorContext
	if err := json.Unmarshal(data, &ec); err != nil {
		return nil, fmt.Errorf("decoding error context: %w", err)
	}
	if !ec.Metadata.Category.Valid() {
		return nil, fmt.Errorf("decoding error context: unknown category %q", ec.Metadata.Category)
	}
	if !ec.Metadata.Severity.Valid() {
		return nil, fmt.Errorf("decoding error context: unknown severity %q", ec.Metadata.Severity)
	}
	return &ec, nil
}
