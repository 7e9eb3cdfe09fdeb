package taxonomy

import (
	"os"
	"runtime"
	"time"

	"github.com/ballast-systems/ballast/pkg/types"
)

// MetadataOption customizes a metadata record at construction time.
type MetadataOption func(*types.ErrorMetadata)

// WithPipeline records the host pipeline/step execution context.
func WithPipeline(pipeline, step string, stepIndex int) MetadataOption {
	return func(m *types.ErrorMetadata) {
		m.Pipeline = pipeline
		m.Step = step
		m.StepIndex = stepIndex
	}
}

// WithExecution records execution and correlation identifiers.
func WithExecution(executionID, correlationID string) MetadataOption {
	return func(m *types.ErrorMetadata) {
		m.ExecutionID = executionID
		m.CorrelationID = correlationID
	}
}

// WithLineage records parent and root-cause error identifiers.
func WithLineage(parentID, rootCauseID string) MetadataOption {
	return func(m *types.ErrorMetadata) {
		m.ParentID = parentID
		m.RootCauseID = rootCauseID
	}
}

// WithCallSite records the technical call-site facts.
func WithCallSite(function, file string, line int) MetadataOption {
	return func(m *types.ErrorMetadata) {
		m.Function = function
		m.File = file
		m.Line = line
	}
}

// WithStackTrace attaches a captured stack trace.
func WithStackTrace(trace string) MetadataOption {
	return func(m *types.ErrorMetadata) { m.StackTrace = trace }
}

// WithTag adds one tag to the metadata.
func WithTag(key, value string) MetadataOption {
	return func(m *types.ErrorMetadata) {
		if m.Tags == nil {
			m.Tags = make(map[string]string)
		}
		m.Tags[key] = value
	}
}

// WithCustom adds one custom-data entry to the metadata.
func WithCustom(key string, value interface{}) MetadataOption {
	return func(m *types.ErrorMetadata) {
		if m.Custom == nil {
			m.Custom = make(map[string]interface{})
		}
		m.Custom[key] = value
	}
}

// NewMetadata creates an ErrorMetadata with a fresh ID and the system facts
// (host, process, heap size) filled in, then applies the given options.
func NewMetadata(category types.ErrorCategory, severity types.ErrorSeverity, opts ...MetadataOption) types.ErrorMetadata {
	host, _ := os.Hostname()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := types.ErrorMetadata{
		ID:          NewErrorID(),
		Timestamp:   time.Now().UTC(),
		Category:    category,
		Severity:    severity,
		Host:        host,
		ProcessID:   os.Getpid(),
		MemoryBytes: ms.HeapAlloc,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// CaptureStack returns the current goroutine's stack trace for attachment to
// metadata. bufSize caps the capture; 16KiB covers typical depths.
func CaptureStack() string {
	buf := make([]byte, 16*1024)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
