package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/repositories"
)

// BuildInfo identifies the running binary in health responses.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps wires the dependency probes and build metadata.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Build  BuildInfo
	Clock  func() time.Time
}

type systemService struct {
	health repositories.HealthRepository
	build  BuildInfo
	clock  func() time.Time
}

// NewSystemService builds the readiness reporter.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Build.StartedAt.IsZero() {
		deps.Build.StartedAt = deps.Clock().UTC()
	}
	return &systemService{health: deps.Health, build: deps.Build, clock: deps.Clock}, nil
}

// HealthReport runs the probes and stamps the report with build metadata and uptime.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, fmt.Errorf("system: collect health: %w", err)
	}
	now := s.clock().UTC()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	report.Version = s.build.Version
	report.CommitSHA = s.build.CommitSHA
	report.Environment = s.build.Environment
	report.Uptime = now.Sub(s.build.StartedAt)
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if report.Status == "" {
		report.Status = worstStatus(report.Checks)
	}
	return report, nil
}

// worstStatus treats a check with no recognised status as degraded.
func worstStatus(checks map[string]domain.SystemHealthCheck) string {
	worst := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK:
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			worst = domain.HealthStatusDegraded
		}
	}
	return worst
}
