package repositories

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/eventpass/api/internal/domain"
)

// DependencyCheck is one readiness probe. A failing Critical probe turns the
// report to error; any other failure only degrades it.
type DependencyCheck struct {
	Name     string
	Critical bool
	// Timeout bounds Check. Zero uses the set-wide default of 1.5s.
	Timeout time.Duration
	Check   func(context.Context) error
}

// ProbeOption adjusts a dependency probe set.
type ProbeOption func(*probeSet)

// WithProbeClock overrides time.Now.
func WithProbeClock(now func() time.Time) ProbeOption {
	return func(p *probeSet) {
		if now != nil {
			p.now = now
		}
	}
}

type probeSet struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

// NewDependencyHealthRepository runs the checks concurrently on every Collect.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...ProbeOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks given")
	}
	seen := make(map[string]bool, len(checks))
	for _, check := range checks {
		switch {
		case check.Name == "":
			return nil, errors.New("health: dependency check without a name")
		case check.Check == nil:
			return nil, fmt.Errorf("health: dependency %q has no check func", check.Name)
		case seen[check.Name]:
			return nil, fmt.Errorf("health: dependency %q listed twice", check.Name)
		}
		seen[check.Name] = true
	}
	p := &probeSet{checks: checks, timeout: 1500 * time.Millisecond, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *probeSet) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	results := make([]domain.SystemHealthCheck, len(p.checks))
	var g errgroup.Group
	for i, check := range p.checks {
		g.Go(func() error {
			results[i] = p.probe(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(results)),
		GeneratedAt: p.now().UTC(),
	}
	for i, check := range p.checks {
		report.Checks[check.Name] = results[i]
		switch results[i].Status {
		case domain.HealthStatusError:
			report.Status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if report.Status == domain.HealthStatusOK {
				report.Status = domain.HealthStatusDegraded
			}
		}
	}
	return report, nil
}

func (p *probeSet) probe(ctx context.Context, check DependencyCheck) (result domain.SystemHealthCheck) {
	ctx, cancel := context.WithTimeout(ctx, cmp.Or(check.Timeout, p.timeout))
	defer cancel()

	started := p.now()
	defer func() {
		if r := recover(); r != nil {
			result = failed(check, fmt.Errorf("probe panicked: %v", r), "panic")
		}
		result.CheckedAt = p.now().UTC()
		result.Latency = result.CheckedAt.Sub(started)
	}()

	err := check.Check(ctx)
	if err == nil {
		err = ctx.Err()
	}
	switch {
	case err == nil:
		return domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: "ok"}
	case errors.Is(err, context.DeadlineExceeded):
		return failed(check, err, "timeout")
	default:
		return failed(check, err, "unhealthy")
	}
}

func failed(check DependencyCheck, err error, detail string) domain.SystemHealthCheck {
	status := domain.HealthStatusDegraded
	if check.Critical {
		status = domain.HealthStatusError
	}
	return domain.SystemHealthCheck{Status: status, Detail: detail, Error: err.Error()}
}
