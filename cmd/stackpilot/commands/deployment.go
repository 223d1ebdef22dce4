package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/stackpilot/stackpilot/pkg/app"
	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/ledger"
	"github.com/stackpilot/stackpilot/pkg/stack"
	"github.com/stackpilot/stackpilot/pkg/target"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// deployment wires the target, ledger, configuration store and
// components into the composite application for one CLI invocation.
type deployment struct {
	settings *Settings
	log      *telemetry.Logger
	store    *config.Store
	phab     *app.Phabricator

	closers []func() error
}

// buildDeployment constructs everything the lifecycle commands operate
// on. Call Close when done; it persists the configuration store even
// after a failed run, so generated credentials survive.
func buildDeployment(ctx context.Context) (*deployment, error) {
	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	log := telemetry.NewLogger(os.Stdout, os.Stderr, logLevel()).
		WithRunID(uuid.NewString())

	d := &deployment{settings: settings, log: log}

	tgt, err := d.buildTarget(log)
	if err != nil {
		return nil, err
	}

	led, err := d.buildLedger(ctx)
	if err != nil {
		return nil, err
	}

	d.store = config.NewStore()
	if _, err := os.Stat(settings.ConfigPath); err == nil {
		if err := d.store.Load(settings.ConfigPath); err != nil {
			return nil, err
		}
	}

	system := stack.NewUbuntu(tgt, led, log)
	phab, err := app.New(
		stack.NewMariaDB(system),
		stack.NewApache2(system),
		stack.NewPHP(system),
		d.store, led, log)
	if err != nil {
		return nil, err
	}
	d.phab = phab
	return d, nil
}

func (d *deployment) buildTarget(log *telemetry.Logger) (target.Target, error) {
	local := target.NewLocalTarget(log)
	switch d.settings.Transport {
	case "local":
		return local, nil
	case "docker":
		return target.NewDockerTarget(d.settings.Container, local, log), nil
	case "ssh":
		tgt, err := target.NewSSHTarget(&target.SSHConfig{
			Host:           d.settings.SSH.Host,
			Port:           d.settings.SSH.Port,
			User:           d.settings.SSH.User,
			Password:       d.settings.SSH.Password,
			PrivateKeyPath: d.settings.SSH.PrivateKeyPath,
			KnownHostsPath: d.settings.SSH.KnownHostsPath,
		}, log)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, tgt.Close)
		return tgt, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", d.settings.Transport)
	}
}

func (d *deployment) buildLedger(ctx context.Context) (ledger.Ledger, error) {
	if d.settings.StatePath == "" {
		return ledger.NewMemoryLedger(), nil
	}
	led, err := ledger.OpenSQLiteLedger(ctx, d.settings.StatePath)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, led.Close)
	return led, nil
}

// Close persists the configuration store and releases held resources.
func (d *deployment) Close() {
	if d.store != nil {
		if err := d.store.Save(d.settings.ConfigPath); err != nil {
			d.log.WithError(err).Error("failed to save configuration")
		}
	}
	for _, close := range d.closers {
		if err := close(); err != nil {
			d.log.WithError(err).Warn("cleanup failed")
		}
	}
}
