package intake

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/ballast-systems/ballast/pkg/types"
)

// Channel is a notification destination. Send must return a deterministic
// outcome; stub channels report success without performing transport I/O.
type Channel interface {
	Name() string
	Send(rendered string, ec *types.ErrorContext) error
}

// LogChannel writes notifications through the structured logger. This is the
// only channel with unconditional real I/O.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a log-backed channel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Name returns the channel identifier.
func (c *LogChannel) Name() string { return "log" }

// Send logs the rendered notification at a level derived from severity.
func (c *LogChannel) Send(rendered string, ec *types.ErrorContext) error {
	attrs := []any{
		"errorId", ec.Metadata.ID,
		"category", ec.Metadata.Category,
		"severity", ec.Metadata.Severity,
	}
	if ec.Metadata.Severity.AtLeast(types.SeverityCritical) {
		c.logger.Error(rendered, attrs...)
	} else if ec.Metadata.Severity.AtLeast(types.SeverityHigh) {
		c.logger.Warn(rendered, attrs...)
	} else {
		c.logger.Info(rendered, attrs...)
	}
	return nil
}

// ConsoleChannel writes notifications to the terminal with color-coded
// severity.
type ConsoleChannel struct{}

// NewConsoleChannel creates a console channel.
func NewConsoleChannel() *ConsoleChannel { return &ConsoleChannel{} }

// Name returns the channel identifier.
func (c *ConsoleChannel) Name() string { return "console" }

// Send writes the rendered notification with a color-coded severity prefix.
func (c *ConsoleChannel) Send(rendered string, ec *types.ErrorContext) error {
	var prefix string
	switch {
	case ec.Metadata.Severity.AtLeast(types.SeverityCritical):
		prefix = color.RedString("[%s]", ec.Metadata.Severity)
	case ec.Metadata.Severity.AtLeast(types.SeverityHigh):
		prefix = color.YellowString("[%s]", ec.Metadata.Severity)
	default:
		prefix = color.CyanString("[%s]", ec.Metadata.Severity)
	}
	fmt.Printf("%s %s\n", prefix, rendered)
	return nil
}

// FileChannel appends rendered notifications to a local file.
type FileChannel struct {
	mu   sync.Mutex
	path string
}

// NewFileChannel creates a file channel. The path must be non-empty.
func NewFileChannel(path string) (*FileChannel, error) {
	if path == "" {
		return nil, fmt.Errorf("file channel path required")
	}
	return &FileChannel{path: path}, nil
}

// Name returns the channel identifier.
func (c *FileChannel) Name() string { return "file" }

// Send appends one rendered line to the file.
func (c *FileChannel) Send(rendered string, _ *types.ErrorContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening notification file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, rendered); err != nil {
		return fmt.Errorf("writing notification: %w", err)
	}
	return nil
}

// EmailChannel is a stub extension point. A real deployment must back it
// with its own mail transport; until then it records the would-be delivery
// and reports success deterministically.
type EmailChannel struct {
	mu         sync.Mutex
	recipients []string
	sent       []string
}

// NewEmailChannel creates an email stub for the given recipients.
func NewEmailChannel(recipients []string) *EmailChannel {
	return &EmailChannel{recipients: recipients}
}

// Name returns the channel identifier.
func (c *EmailChannel) Name() string { return "email" }

// Send records the rendered message without performing any transport I/O.
func (c *EmailChannel) Send(rendered string, _ *types.ErrorContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, rendered)
	return nil
}

// Sent returns the messages the stub would have delivered.
func (c *EmailChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// WebhookChannel is a stub extension point. A real deployment must back it
// with an HTTP transport; until then it records the would-be delivery and
// reports success deterministically.
type WebhookChannel struct {
	mu   sync.Mutex
	url  string
	sent []string
}

// NewWebhookChannel creates a webhook stub. The URL must be non-empty.
func NewWebhookChannel(url string) (*WebhookChannel, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL required")
	}
	return &WebhookChannel{url: url}, nil
}

// Name returns the channel identifier.
func (c *WebhookChannel) Name() string { return "webhook" }

// Send records the rendered payload without performing any transport I/O.
func (c *WebhookChannel) Send(rendered string, _ *types.ErrorContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, rendered)
	return nil
}

// Sent returns the payloads the stub would have delivered.
func (c *WebhookChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}
