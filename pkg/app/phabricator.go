// Package app composes service components into installable
// applications. The one application currently supported is Phabricator
// on MariaDB, Apache2 and PHP.
package app

import (
	"context"
	"fmt"
	"path"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/ledger"
	"github.com/stackpilot/stackpilot/pkg/stack"
	"github.com/stackpilot/stackpilot/pkg/target"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// repoComponent is one versioned upstream component fetched into the
// application directory.
type repoComponent struct {
	name string
	path string
}

// Phabricator composes the database, web server and scripting runtime
// into the full application install.
type Phabricator struct {
	db  *stack.MariaDB
	web *stack.Apache2
	php *stack.PHP

	system *stack.Ubuntu
	target target.Target
	ledger ledger.Ledger
	cfg    *config.Store
	log    *telemetry.Logger

	appPath         string
	phabricatorPath string
	webrootPath     string
	arcanistPath    string
	libphutilPath   string

	components []repoComponent

	daemonStarted bool
}

// New composes the application from its components. All components must
// be bound to the same Target instance; a mismatch fails with a
// ConsistencyError before any command is issued. Defaults for the
// application configuration are seeded via SetDefault, so values loaded
// from a previous run are preserved.
func New(db *stack.MariaDB, web *stack.Apache2, php *stack.PHP,
	cfg *config.Store, led ledger.Ledger, log *telemetry.Logger) (*Phabricator, error) {

	dbTarget := db.System().Target()
	if web.System().Target() != dbTarget || php.System().Target() != dbTarget {
		return nil, &stack.ConsistencyError{
			Subject: "phabricator",
			Detail:  "all components must share one target instance",
		}
	}
	if db.System() != web.System() || db.System() != php.System() {
		return nil, &stack.ConsistencyError{
			Subject: "phabricator",
			Detail:  "all components must share one system helper",
		}
	}

	p := &Phabricator{
		db:     db,
		web:    web,
		php:    php,
		system: db.System(),
		target: dbTarget,
		ledger: led,
		cfg:    cfg,
		log:    log.WithComponent("phabricator"),
	}

	// Unique among all applications we support.
	cfg.SetDefault("app.id", "phabricator")
	cfg.SetDefault("app.domain-base", "dev.local")
	cfg.SetDefault("app.domain-files", "devfiles.local")

	appID, err := cfg.GetString("app.id")
	if err != nil {
		return nil, err
	}

	cfg.SetDefault("mysql.user.name", appID+"_mysql_user")
	cfg.SetDefault("mysql.user.password", GeneratePassword())
	cfg.SetDefault("app.daemon.user.name", appID+"_user")
	cfg.SetDefault("app.site.id", appID+"_site")

	p.appPath = path.Join("/opt", appID)
	p.phabricatorPath = path.Join(p.appPath, "phabricator")
	p.webrootPath = path.Join(p.phabricatorPath, "webroot")
	p.arcanistPath = path.Join(p.appPath, "arcanist")
	p.libphutilPath = path.Join(p.appPath, "libphutil")

	p.components = []repoComponent{
		{"libphutil", p.libphutilPath},
		{"arcanist", p.arcanistPath},
		{"phabricator", p.phabricatorPath},
	}

	if err := db.Configure(map[string]string{
		"sql_mode": "STRICT_ALL_TABLES",

		// InnoDB cache for table and index data; actual usage runs
		// about 10% over the configured size. Phabricator warns below
		// 256M, and MySQL refuses to start when the allocation fails:
		//
		//     InnoDB: Fatal error: cannot allocate memory for
		//     the buffer pool
		"innodb_buffer_pool_size": "1600M",

		"max_allowed_packet": "33554432",
	}); err != nil {
		return nil, err
	}

	domainBase, err := cfg.GetString("app.domain-base")
	if err != nil {
		return nil, err
	}
	siteID, err := cfg.GetString("app.site.id")
	if err != nil {
		return nil, err
	}
	if err := web.AddSite(siteID, stack.SiteConfig{
		Hosts: []stack.HostBlock{
			{
				Addr: "*",
				Directives: []stack.Directive{
					{Name: "ServerName", Value: domainBase},
					{Name: "DocumentRoot", Value: p.webrootPath},
					{Name: "RewriteEngine", Value: "on"},
					{Name: "RewriteRule", Value: "^(.*)$ /index.php?__path__=$1 [B,L,QSA]"},
				},
			},
		},
		Directories: []stack.DirectoryBlock{
			{
				Path: p.webrootPath,
				Directives: []stack.Directive{
					{Name: "Require", Value: "all granted"},
				},
			},
		},
	}); err != nil {
		return nil, err
	}

	if err := php.Configure(map[string]string{
		"date.timezone": "Etc/UTC",
		"post_max_size": "32M",

		// OPcache should never revalidate code.
		"opcache.validate_timestamps": "0",
	}); err != nil {
		return nil, err
	}

	return p, nil
}

// Config returns the application configuration store.
func (p *Phabricator) Config() *config.Store {
	return p.cfg
}

func (p *Phabricator) runConfigSet(ctx context.Context, id, value string) error {
	configPath := path.Join(p.phabricatorPath, "bin", "config")
	_, err := p.target.Run(ctx, target.Exec(configPath, "set", id, value))
	return err
}

func (p *Phabricator) runStorage(ctx context.Context, args ...string) error {
	storagePath := path.Join(p.phabricatorPath, "bin", "storage")
	_, err := p.target.Run(ctx, target.Exec(append([]string{storagePath}, args...)...))
	return err
}

// fetchComponents clones each upstream component on first install and
// pulls updates on reruns; the existence probe decides which.
func (p *Phabricator) fetchComponents(ctx context.Context) error {
	p.log.Task("Retrieve phabricator components.")
	for _, component := range p.components {
		exists, err := p.target.DoesFileExist(ctx, component.path)
		if err != nil {
			return err
		}
		if !exists {
			dir := path.Dir(component.path)
			clone := fmt.Sprintf(
				"mkdir -p %s && cd %s && git clone https://github.com/phacility/%s.git",
				target.Quote(dir), target.Quote(dir), component.name)
			if _, err := p.target.Run(ctx, target.Shell(clone)); err != nil {
				return err
			}
			continue
		}
		pull := fmt.Sprintf("cd %s && git pull", target.Quote(component.path))
		if _, err := p.target.Run(ctx, target.Shell(pull)); err != nil {
			return err
		}
	}
	return nil
}

// createDatabaseUser replaces the application's database user with the
// configured name and password and grants it the privileges the
// application needs.
func (p *Phabricator) createDatabaseUser(ctx context.Context) error {
	user, err := p.cfg.GetString("mysql.user.name")
	if err != nil {
		return err
	}
	password, err := p.cfg.GetString("mysql.user.password")
	if err != nil {
		return err
	}

	return ledger.RunOnce(ctx, p.ledger, "phabricator.mysql-user",
		func(ctx context.Context) error {
			p.log.Task("Create the Phabricator MySQL user.")
			return p.db.AddUser(ctx, user, password,
				"SELECT, INSERT, UPDATE, DELETE, EXECUTE, SHOW VIEW",
				"`phabricator\\_%`.*")
		})
}

func (p *Phabricator) installSupportPackages(ctx context.Context) error {
	packages := []string{
		"git",
		"mercurial",
		"subversion",
		"python-pygments",
		"imagemagick",
	}
	// The id covers the package list, so adding a package reruns the
	// step even against a durable ledger.
	id := ledger.ActionID(append([]string{"phabricator.support-packages"}, packages...)...)
	return ledger.RunOnce(ctx, p.ledger, id,
		func(ctx context.Context) error {
			p.log.Task("Install packages Phabricator relies on.")
			return p.system.InstallPackages(ctx, packages...)
		})
}

// applyConfiguration writes application configuration keys through the
// runtime's own config setter. Values may change between runs, so these
// calls are issued unconditionally.
func (p *Phabricator) applyConfiguration(ctx context.Context) error {
	user, err := p.cfg.GetString("mysql.user.name")
	if err != nil {
		return err
	}
	password, err := p.cfg.GetString("mysql.user.password")
	if err != nil {
		return err
	}
	domainBase, err := p.cfg.GetString("app.domain-base")
	if err != nil {
		return err
	}
	domainFiles, err := p.cfg.GetString("app.domain-files")
	if err != nil {
		return err
	}

	p.log.Task("Set up Phabricator MySQL user credentials.")
	if err := p.runConfigSet(ctx, "mysql.user", user); err != nil {
		return err
	}
	if err := p.runConfigSet(ctx, "mysql.pass", password); err != nil {
		return err
	}

	p.log.Task("Configure Phabricator base and file URIs.")
	if err := p.runConfigSet(ctx, "phabricator.base-uri",
		fmt.Sprintf("http://%s/", domainBase)); err != nil {
		return err
	}
	if err := p.runConfigSet(ctx, "security.alternate-file-domain",
		fmt.Sprintf("http://%s/", domainFiles)); err != nil {
		return err
	}

	p.log.Task("Enable Pygments.")
	if err := p.runConfigSet(ctx, "pygments.enabled", "true"); err != nil {
		return err
	}

	p.log.Task("Configure Phabricator mail adapter.")
	if err := p.runConfigSet(ctx, "metamta.mail-adapter",
		"PhabricatorMailImplementationPHPMailerAdapter"); err != nil {
		return err
	}

	return nil
}

// prepareDirectories creates the repository and file storage
// directories and points the application at them.
func (p *Phabricator) prepareDirectories(ctx context.Context) error {
	if err := ledger.RunOnce(ctx, p.ledger, "phabricator.directories",
		func(ctx context.Context) error {
			p.log.Task("Set up Phabricator repositories and files directories.")
			if _, err := p.target.Run(ctx, target.Exec("mkdir", "-p", "/opt/repos")); err != nil {
				return err
			}
			if _, err := p.target.Run(ctx, target.Exec("mkdir", "-p", "/opt/files")); err != nil {
				return err
			}
			_, err := p.target.Run(ctx,
				target.Exec("chown", "-R", "www-data:www-data", "/opt/files"))
			return err
		}); err != nil {
		return err
	}

	if err := p.runConfigSet(ctx, "repository.default-local-path", "/opt/repos"); err != nil {
		return err
	}
	return p.runConfigSet(ctx, "storage.local-disk.path", "/opt/files")
}

// Install provisions the whole application in dependency order. The
// sequence is resumable: a rerun skips ledger-tagged steps that already
// completed and the component fetch probes decide clone versus pull.
func (p *Phabricator) Install(ctx context.Context) error {
	if err := p.system.UpdateUpgrade(ctx); err != nil {
		return err
	}

	if err := p.db.Install(ctx); err != nil {
		return err
	}
	if err := p.createDatabaseUser(ctx); err != nil {
		return err
	}

	if err := p.web.Install(ctx); err != nil {
		return err
	}
	if err := p.php.Install(ctx); err != nil {
		return err
	}

	if err := p.installSupportPackages(ctx); err != nil {
		return err
	}
	if err := p.fetchComponents(ctx); err != nil {
		return err
	}

	if err := p.applyConfiguration(ctx); err != nil {
		return err
	}
	if err := p.prepareDirectories(ctx); err != nil {
		return err
	}

	p.log.Task("Set up MySQL schema.")
	if err := p.runStorage(ctx, "upgrade", "--force", "--user", "root"); err != nil {
		return err
	}

	return p.Restart(ctx)
}

func (p *Phabricator) manageDaemon(ctx context.Context, action string) error {
	phdPath := path.Join(p.phabricatorPath, "bin", "phd")
	_, err := p.target.Run(ctx, target.Exec(phdPath, action))
	return err
}

// restartDaemon restarts the application daemon. Starting is
// implemented as restart: phd restart is safe whether or not daemons
// are running.
func (p *Phabricator) restartDaemon(ctx context.Context) error {
	if err := p.manageDaemon(ctx, "restart"); err != nil {
		return err
	}
	p.daemonStarted = true
	return nil
}

func (p *Phabricator) stopDaemon(ctx context.Context) error {
	if !p.daemonStarted {
		return nil
	}
	if err := p.manageDaemon(ctx, "stop"); err != nil {
		return err
	}
	p.daemonStarted = false
	return nil
}

// Start brings the stack up in dependency order: database, application
// daemon, web server.
func (p *Phabricator) Start(ctx context.Context) error {
	if err := p.db.Start(ctx); err != nil {
		return err
	}
	if err := p.restartDaemon(ctx); err != nil {
		return err
	}
	return p.web.Start(ctx)
}

// Restart restarts the stack unconditionally in dependency order.
func (p *Phabricator) Restart(ctx context.Context) error {
	if err := p.db.Restart(ctx); err != nil {
		return err
	}
	if err := p.restartDaemon(ctx); err != nil {
		return err
	}
	return p.web.Restart(ctx)
}

// Stop brings the stack down in reverse dependency order.
func (p *Phabricator) Stop(ctx context.Context) error {
	if err := p.web.Stop(ctx); err != nil {
		return err
	}
	if err := p.stopDaemon(ctx); err != nil {
		return err
	}
	return p.db.Stop(ctx)
}
