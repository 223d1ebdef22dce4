package stack

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/target"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// mariadbConfigPath is where the generated [mysqld] option file lands.
const mariadbConfigPath = "/etc/mysql/mariadb.conf.d/99-stackpilot.cnf"

// MariaDB provisions the MariaDB server on a target.
type MariaDB struct {
	system *Ubuntu
	log    *telemetry.Logger

	options map[string]string

	installed bool
	started   bool
}

// NewMariaDB creates the database component on the given system.
func NewMariaDB(system *Ubuntu) *MariaDB {
	return &MariaDB{
		system:  system,
		log:     system.log.WithComponent("mariadb"),
		options: make(map[string]string),
	}
}

// System returns the shared system helper. Used by the composition
// layer to verify all components target the same machine.
func (m *MariaDB) System() *Ubuntu {
	return m.system
}

// Configure records [mysqld] options to be written at install time.
// Conflicting values for an already-recorded option fail; configuring
// after install fails.
func (m *MariaDB) Configure(options map[string]string) error {
	if m.installed {
		return configureAfterInstallError("mariadb")
	}
	return mergeOptions("mariadb", m.options, options)
}

func (m *MariaDB) renderConfigFile() []byte {
	lines := []string{"", "[mysqld]"}
	for _, option := range sortedOptionKeys(m.options) {
		lines = append(lines, fmt.Sprintf("%s = %s", option, m.options[option]))
	}
	lines = append(lines, "")
	return []byte(strings.Join(lines, "\n"))
}

// Install installs the server package and writes the recorded options.
func (m *MariaDB) Install(ctx context.Context) error {
	m.log.Task("Install MariaDB.")
	if err := m.system.UpdateUpgrade(ctx); err != nil {
		return err
	}
	if err := m.system.InstallPackages(ctx, "mariadb-server"); err != nil {
		return err
	}
	if err := m.system.Target().WriteFile(ctx, mariadbConfigPath, m.renderConfigFile()); err != nil {
		return err
	}
	m.installed = true
	return nil
}

// Exec runs SQL statements as the root database user, starting the
// daemon first if needed. With tolerate set a failing statement is
// swallowed instead of propagated.
func (m *MariaDB) Exec(ctx context.Context, statements string, tolerate bool) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	cmd := target.Exec("mysql", "-u", "root", "--execute", statements)
	if tolerate {
		_, err := m.system.Target().Try(ctx, cmd)
		return err
	}
	_, err := m.system.Target().Run(ctx, cmd)
	return err
}

// AddUser replaces the named database user: an existing user is
// dropped first (tolerating failure when there is none), then the user
// is created and granted the given privileges on the given objects.
func (m *MariaDB) AddUser(ctx context.Context, user, password, privileges, objects string) error {
	drop := fmt.Sprintf("DROP USER '%s'@'localhost';", user)
	if err := m.Exec(ctx, drop, true); err != nil {
		return err
	}

	create := fmt.Sprintf(
		"CREATE USER '%s'@'localhost' IDENTIFIED BY '%s'; "+
			"GRANT %s ON %s TO '%s'@'localhost';",
		user, password, privileges, objects, user)
	return m.Exec(ctx, create, false)
}

func (m *MariaDB) manage(ctx context.Context, action string) error {
	return m.system.ManageService(ctx, "mysql", action)
}

// Start starts the daemon unless it is already observed started.
func (m *MariaDB) Start(ctx context.Context) error {
	if m.started {
		return nil
	}
	if err := m.manage(ctx, "start"); err != nil {
		return err
	}
	m.started = true
	return nil
}

// Restart restarts the daemon unconditionally.
func (m *MariaDB) Restart(ctx context.Context) error {
	if err := m.manage(ctx, "restart"); err != nil {
		return err
	}
	m.started = true
	return nil
}

// Stop stops the daemon if it is observed started.
func (m *MariaDB) Stop(ctx context.Context) error {
	if !m.started {
		return nil
	}
	if err := m.manage(ctx, "stop"); err != nil {
		return err
	}
	m.started = false
	return nil
}
