package stack

import (
	"context"

	"github.com/stackpilot/stackpilot/pkg/ledger"
	"github.com/stackpilot/stackpilot/pkg/target"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// Ubuntu drives the apt package manager and service wrappers on a
// target. It is shared by all components provisioned on that target.
type Ubuntu struct {
	target target.Target
	ledger ledger.Ledger
	log    *telemetry.Logger
}

// NewUbuntu creates the system helper for a target.
func NewUbuntu(t target.Target, l ledger.Ledger, log *telemetry.Logger) *Ubuntu {
	return &Ubuntu{
		target: t,
		ledger: l,
		log:    log.WithComponent("ubuntu"),
	}
}

// Target returns the execution surface this system drives.
func (s *Ubuntu) Target() target.Target {
	return s.target
}

func (s *Ubuntu) aptGet(ctx context.Context, args ...string) error {
	cmd := target.Exec(append([]string{"apt-get"}, args...)...).
		WithEnv("DEBIAN_FRONTEND=noninteractive")
	_, err := s.target.Run(ctx, cmd)
	return err
}

// Update refreshes the package index. Runs once per ledger lifetime;
// with the in-memory ledger that is once per process.
func (s *Ubuntu) Update(ctx context.Context) error {
	return ledger.RunOnce(ctx, s.ledger, "apt.update", func(ctx context.Context) error {
		s.log.Task("Update package index.")
		return s.aptGet(ctx, "update")
	})
}

// Upgrade upgrades installed packages. Runs once per ledger lifetime.
func (s *Ubuntu) Upgrade(ctx context.Context) error {
	return ledger.RunOnce(ctx, s.ledger, "apt.upgrade", func(ctx context.Context) error {
		s.log.Task("Upgrade installed packages.")
		return s.aptGet(ctx, "upgrade", "--yes")
	})
}

// UpdateUpgrade runs Update then Upgrade.
func (s *Ubuntu) UpdateUpgrade(ctx context.Context) error {
	if err := s.Update(ctx); err != nil {
		return err
	}
	return s.Upgrade(ctx)
}

// InstallPackages installs the named packages. Already-installed
// packages are apt's own concern; the call is issued unconditionally.
func (s *Ubuntu) InstallPackages(ctx context.Context, packages ...string) error {
	args := append([]string{"install", "--yes"}, packages...)
	return s.aptGet(ctx, args...)
}

// ManageService runs a service manager action (start, stop, restart)
// for the named service.
func (s *Ubuntu) ManageService(ctx context.Context, service, action string) error {
	_, err := s.target.Run(ctx, target.Exec("service", service, action))
	return err
}
