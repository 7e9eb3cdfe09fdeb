package intake

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// notificationTemplate is the single fixed text rendering used for every
// channel.
const notificationTemplate = `[{{.Severity}}] {{.Category}} error {{.ID}}{{if .Pipeline}} in {{.Pipeline}}{{if .Step}}/{{.Step}}{{end}}{{end}}: {{.Message}}`

// boundChannel pairs a channel with its severity gate.
type boundChannel struct {
	channel     Channel
	minSeverity types.ErrorSeverity
}

// DeliveryResult records one channel's outcome for one notification.
type DeliveryResult struct {
	DeliveryID string    `json:"deliveryId"`
	Channel    string    `json:"channel"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// NotifierStats tracks running delivery totals.
type NotifierStats struct {
	Notifications int64            `json:"notifications"`
	Sent          int64            `json:"sent"`
	Failed        int64            `json:"failed"`
	PerChannel    map[string]int64 `json:"perChannel"`
}

// Notifier renders one fixed template per error context and dispatches it to
// every channel whose severity threshold the context meets. Channels are
// dispatched independently: one channel's failure never blocks another.
type Notifier struct {
	mu       sync.Mutex
	channels []boundChannel
	tmpl     *template.Template
	stats    NotifierStats
	logger   *slog.Logger
}

// NewNotifier creates a notifier with no channels bound.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		tmpl:   template.Must(template.New("notification").Parse(notificationTemplate)),
		stats:  NotifierStats{PerChannel: make(map[string]int64)},
		logger: logger,
	}
}

// NewNotifierFromConfig builds a notifier with channels constructed from the
// notification config section. Unknown channel types and unparsable
// severities fail fast.
func NewNotifierFromConfig(cfg types.NotificationConfig, logger *slog.Logger) (*Notifier, error) {
	n := NewNotifier(logger)
	for _, cc := range cfg.Channels {
		ch, err := newChannel(cc, logger)
		if err != nil {
			return nil, fmt.Errorf("creating %s channel: %w", cc.Type, err)
		}
		minSev := cc.MinSeverity
		if minSev == "" {
			minSev = types.SeverityLow
		}
		if !minSev.Valid() {
			return nil, fmt.Errorf("channel %s: unknown severity %q", cc.Type, cc.MinSeverity)
		}
		n.AddChannel(ch, minSev)
	}
	return n, nil
}

func newChannel(cfg types.ChannelConfig, logger *slog.Logger) (Channel, error) {
	switch cfg.Type {
	case types.ChannelLog:
		return NewLogChannel(logger), nil
	case types.ChannelConsole:
		return NewConsoleChannel(), nil
	case types.ChannelFile:
		return NewFileChannel(cfg.Path)
	case types.ChannelEmail:
		return NewEmailChannel(cfg.Recipients), nil
	case types.ChannelWebhook:
		return NewWebhookChannel(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown channel type %q", cfg.Type)
	}
}

// AddChannel binds a channel with its minimum severity gate.
func (n *Notifier) AddChannel(ch Channel, minSeverity types.ErrorSeverity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, boundChannel{channel: ch, minSeverity: minSeverity})
}

// render produces the fixed-template text for a context.
func (n *Notifier) render(ec *types.ErrorContext) (string, error) {
	var sb strings.Builder
	err := n.tmpl.Execute(&sb, struct {
		Severity types.ErrorSeverity
		Category types.ErrorCategory
		ID       string
		Pipeline string
		Step     string
		Message  string
	}{
		Severity: ec.Metadata.Severity,
		Category: ec.Metadata.Category,
		ID:       ec.Metadata.ID,
		Pipeline: ec.Metadata.Pipeline,
		Step:     ec.Metadata.Step,
		Message:  ec.Message,
	})
	if err != nil {
		return "", fmt.Errorf("rendering notification: %w", err)
	}
	return sb.String(), nil
}

// Notify selects channels whose threshold the context's severity meets,
// renders the template once, and dispatches to each selected channel. It
// returns one delivery result per selected channel.
func (n *Notifier) Notify(ec *types.ErrorContext) []DeliveryResult {
	n.mu.Lock()
	selected := make([]boundChannel, 0, len(n.channels))
	for _, bc := range n.channels {
		if ec.Metadata.Severity.AtLeast(bc.minSeverity) {
			selected = append(selected, bc)
		}
	}
	n.stats.Notifications++
	n.mu.Unlock()

	if len(selected) == 0 {
		return nil
	}

	rendered, err := n.render(ec)
	if err != nil {
		// Template and inputs are fixed; this indicates a bug, but the
		// pipeline must not be interrupted.
		n.logger.Error("notification render failed", "errorId", ec.Metadata.ID, "error", err)
		return nil
	}

	results := make([]DeliveryResult, 0, len(selected))
	for _, bc := range selected {
		res := DeliveryResult{
			DeliveryID: uuid.NewString(),
			Channel:    bc.channel.Name(),
			At:         time.Now().UTC(),
		}
		if sendErr := sendSafely(bc.channel, rendered, ec); sendErr != nil {
			res.Error = sendErr.Error()
			metrics.NotificationsTotal.WithLabelValues(res.Channel, "failed").Inc()
			n.logger.Error("notification delivery failed", "channel", res.Channel, "errorId", ec.Metadata.ID, "error", sendErr)
		} else {
			res.Success = true
			metrics.NotificationsTotal.WithLabelValues(res.Channel, "sent").Inc()
		}
		results = append(results, res)
	}

	n.mu.Lock()
	for _, res := range results {
		if res.Success {
			n.stats.Sent++
		} else {
			n.stats.Failed++
		}
		n.stats.PerChannel[res.Channel]++
	}
	n.mu.Unlock()

	return results
}

// Stats returns a snapshot of delivery totals.
func (n *Notifier) Stats() NotifierStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := NotifierStats{
		Notifications: n.stats.Notifications,
		Sent:          n.stats.Sent,
		Failed:        n.stats.Failed,
		PerChannel:    make(map[string]int64, len(n.stats.PerChannel)),
	}
	for k, v := range n.stats.PerChannel {
		s.PerChannel[k] = v
	}
	return s
}

// sendSafely isolates channel panics from the pipeline.
func sendSafely(ch Channel, rendered string, ec *types.ErrorContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("channel panic: %v", rec)
		}
	}()
	return ch.Send(rendered, ec)
}
