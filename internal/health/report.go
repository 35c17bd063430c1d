package health

// Status represents overall data-layer health.
type Status string

const (
	StatusOK       Status = "OK"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// Report summarizes how trustworthy the currently presented data is.
// DEGRADED means stale-but-labeled values are being served; CRITICAL
// means the ledger is effectively unreachable.
type Report struct {
	OverallStatus   Status   `json:"overall_status"`
	Summary         string   `json:"summary"`
	Signals         []string `json:"signals"`
	Recommendations []string `json:"recommendations"`
}
