package taxonomy

import (
	"fmt"
	"strings"

	"github.com/ballast-systems/ballast/pkg/types"
)

// categoryBucket is one ordered keyword bucket for categorization.
type categoryBucket struct {
	category types.ErrorCategory
	keywords []string
}

// categoryBuckets are checked in order against the failure's type name and
// message; the first bucket with any keyword hit wins.
var categoryBuckets = []categoryBucket{
	{types.CategoryNetwork, []string{
		"connection", "timeout", "network", "socket", "dns",
		"unreachable", "refused", "reset by peer", "broken pipe", "http",
	}},
	{types.CategorySystem, []string{
		"memory", "disk", "no space", "file", "resource",
		"system", "i/o", "process", "too many open",
	}},
	{types.CategoryValidation, []string{
		"validation", "invalid", "schema", "type", "value",
		"parse", "format", "required", "malformed",
	}},
	{types.CategorySecurity, []string{
		"auth", "security", "permission denied", "credential",
		"certificate", "token", "forbidden", "unauthorized",
	}},
}

// severityTables map normalized failure type names to a fixed severity.
// Lookup order is most severe first; unlisted types default to medium.
var (
	fatalTypes = map[string]bool{
		"OutOfMemoryError":  true,
		"StackOverflow":     true,
		"SegmentationFault": true,
		"PanicError":        true,
	}
	criticalTypes = map[string]bool{
		"DataCorruptionError": true,
		"SecurityError":       true,
		"AuthenticationError": true,
		"CertificateError":    true,
	}
	highTypes = map[string]bool{
		"ConnectionError":  true,
		"TimeoutError":     true,
		"DatabaseError":    true,
		"NetworkError":     true,
		"DeadlineExceeded": true,
	}
	mediumTypes = map[string]bool{
		"ValidationError": true,
		"ValueError":      true,
		"TypeError":       true,
		"FormatError":     true,
	}
)

// FailureFromError converts a live Go error into a FailureInfo data record.
// Only the type name and message survive; the concrete type is dropped.
func FailureFromError(err error) types.FailureInfo {
	if err == nil {
		return types.FailureInfo{}
	}
	return types.FailureInfo{
		Type:    normalizeTypeName(fmt.Sprintf("%T", err)),
		Message: err.Error(),
	}
}

// normalizeTypeName strips the pointer marker and package path from a Go
// type name: "*fs.PathError" becomes "PathError".
func normalizeTypeName(name string) string {
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Categorize checks the ordered keyword buckets against the failure's type
// name and message. The first non-empty match wins; the default is unknown.
func Categorize(failure types.FailureInfo) types.ErrorCategory {
	haystack := strings.ToLower(failure.Type + " " + failure.Message)
	for _, bucket := range categoryBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(haystack, kw) {
				return bucket.category
			}
		}
	}
	return types.CategoryUnknown
}

// DetermineSeverity looks the failure's normalized type name up in the fixed
// severity tables. Unlisted types default to medium.
func DetermineSeverity(failure types.FailureInfo) types.ErrorSeverity {
	name := normalizeTypeName(failure.Type)
	switch {
	case fatalTypes[name]:
		return types.SeverityFatal
	case criticalTypes[name]:
		return types.SeverityCritical
	case highTypes[name]:
		return types.SeverityHigh
	case mediumTypes[name]:
		return types.SeverityMedium
	default:
		return types.SeverityMedium
	}
}
