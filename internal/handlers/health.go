package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/services"
)

// HealthHandlers serves /healthz and /readyz.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	now    func() time.Time
}

// NewHealthHandlers returns probes for the given build. A nil system service
// makes /readyz report ok without probing anything.
func NewHealthHandlers(system services.SystemService, build services.BuildInfo) *HealthHandlers {
	h := &HealthHandlers{system: system, build: build, now: time.Now}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

// Healthz answers liveness from process state only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.now().UTC()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":      domain.HealthStatusOK,
		"version":     h.build.Version,
		"commitSha":   h.build.CommitSHA,
		"environment": h.build.Environment,
		"uptime":      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		"timestamp":   now.Format(time.RFC3339),
	})
}

type probeResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type readiness struct {
	Status      string                 `json:"status"`
	Checks      map[string]probeResult `json:"checks"`
	Failing     []string               `json:"failing,omitempty"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

// Readyz runs the dependency probes. Only an error status (a critical
// dependency down) takes the instance out of rotation; degraded answers 200.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	body := readiness{Status: domain.HealthStatusOK, Checks: map[string]probeResult{}, GeneratedAt: h.now().UTC()}
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, body)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		body.Status = domain.HealthStatusError
		body.Failing = []string{"health report unavailable"}
		writeJSONResponse(w, http.StatusServiceUnavailable, body)
		return
	}

	body.Status = report.Status
	for name, check := range report.Checks {
		body.Checks[name] = probeResult{Status: check.Status, LatencyMS: check.Latency.Milliseconds(), Error: check.Error}
		if check.Status != domain.HealthStatusOK {
			body.Failing = append(body.Failing, name)
		}
	}
	sort.Strings(body.Failing)

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, body)
}
