package intake

import (
	"log/slog"

	"github.com/ballast-systems/ballast/pkg/types"
)

// Pipeline wires the intake stages together: detect, classify, aggregate,
// route, notify. Duplicate errors within the aggregation window are
// suppressed before routing and notification. Stage failures are contained
// inside each stage; the pipeline itself never raises.
type Pipeline struct {
	Detector   *Detector
	Classifier *Classifier
	Aggregator *Aggregator
	Router     *Router
	Notifier   *Notifier
	logger     *slog.Logger
}

// NewPipeline assembles an intake pipeline from its stages.
func NewPipeline(d *Detector, c *Classifier, a *Aggregator, r *Router, n *Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Detector:   d,
		Classifier: c,
		Aggregator: a,
		Router:     r,
		Notifier:   n,
		logger:     logger,
	}
}

// ProcessFailure runs one raised failure through the full pipeline and
// returns its error context. The returned context is nil when detection is
// disabled.
func (p *Pipeline) ProcessFailure(failure types.FailureInfo, callerCtx map[string]interface{}) *types.ErrorContext {
	ec := p.Detector.DetectFromFailure(failure, callerCtx)
	if ec == nil {
		return nil
	}
	p.process(ec)
	return ec
}

// ProcessLogLine runs a log line through detection and then each synthesized
// context through the rest of the pipeline.
func (p *Pipeline) ProcessLogLine(text, level string) []*types.ErrorContext {
	contexts := p.Detector.DetectFromLog(text, level)
	for _, ec := range contexts {
		p.process(ec)
	}
	return contexts
}

func (p *Pipeline) process(ec *types.ErrorContext) {
	p.Classifier.Classify(ec)

	if p.Aggregator.Add(ec) {
		// Duplicate within the window: counted, not re-routed or re-notified.
		p.logger.Debug("suppressed duplicate error", "errorId", ec.Metadata.ID, "category", ec.Metadata.Category)
		return
	}

	p.Router.Route(ec)
	p.Notifier.Notify(ec)
}
