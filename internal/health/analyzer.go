package health

import (
	"strings"

	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
)

// Analyzer converts metrics + logs into a degradation report for the
// presentation layer, so degraded data is labeled rather than silently
// shown as authoritative.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
}

// NewAnalyzer creates an analyzer with the standard rule set.
func NewAnalyzer(reg *metrics.Registry, logger *logs.Logger) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules: []Rule{
			StaleServeRule,
			TimeoutRule,
			EndpointUnhealthyRule,
			RefreshFailureRule,
		},
	}
}

// Analyze evaluates metrics and recent logs and returns a report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)

		// Escalate status
		if result.Severity == StatusCritical {
			status = StatusCritical
		} else if result.Severity == StatusDegraded && status == StatusOK {
			status = StatusDegraded
		}
	}

	// Log-derived signals: repeated stale serves in the recent window
	// escalate even if counters were reset.
	logEntries := a.logger.GetLast(100)

	staleServes := 0
	panicCount := 0

	for _, entry := range logEntries {
		if entry.Level == logs.WARN &&
			strings.Contains(entry.Message, "serving stale value") {
			staleServes++
		}
		if entry.Level == logs.ERROR &&
			strings.Contains(entry.Message, "panic") {
			panicCount++
		}
	}

	if staleServes >= 3 {
		signals = append(signals,
			"Repeated stale serves detected in recent logs",
		)
		recommendations = append(recommendations,
			"The ledger has been unreachable for several reads; displayed values are cached",
		)
		if status == StatusOK {
			status = StatusDegraded
		}
	}

	if panicCount > 0 {
		signals = append(signals,
			"Application panics detected in logs",
		)
		recommendations = append(recommendations,
			"Inspect stack traces and stabilize error handling",
		)
		status = StatusCritical
	}

	summary := "Data layer is healthy"
	if status != StatusOK {
		summary = "Data layer issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}
