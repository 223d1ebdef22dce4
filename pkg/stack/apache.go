package stack

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/telemetry"
	"github.com/stackpilot/stackpilot/pkg/target"
)

const (
	apacheConfigDir        = "/etc/apache2"
	apacheSitesAvailableIn = "sites-available"
)

// Directive is a single web server configuration directive.
type Directive struct {
	Name  string
	Value string
}

// HostBlock is a virtual host pattern with its ordered directives.
type HostBlock struct {
	Addr       string
	Directives []Directive
}

// DirectoryBlock is a filesystem path with its ordered directives.
type DirectoryBlock struct {
	Path       string
	Directives []Directive
}

// SiteConfig describes one site: ordered virtual host blocks and
// directory blocks. Order is preserved in the rendered file.
type SiteConfig struct {
	Hosts       []HostBlock
	Directories []DirectoryBlock
}

type site struct {
	id     string
	config SiteConfig
}

// Apache2 provisions the Apache web server and its sites on a target.
type Apache2 struct {
	system *Ubuntu
	log    *telemetry.Logger

	sites   []site
	siteIDs map[string]struct{}

	installed bool
	started   bool
}

// NewApache2 creates the web server component on the given system.
func NewApache2(system *Ubuntu) *Apache2 {
	return &Apache2{
		system:  system,
		log:     system.log.WithComponent("apache2"),
		siteIDs: make(map[string]struct{}),
	}
}

// System returns the shared system helper.
func (a *Apache2) System() *Ubuntu {
	return a.system
}

// AddSite registers a site to be written and enabled at install time.
// Sites cannot be added after install, and site ids must be unique.
func (a *Apache2) AddSite(id string, config SiteConfig) error {
	if a.installed {
		return &ConsistencyError{
			Subject: "apache2",
			Detail:  fmt.Sprintf("cannot add site %q after install", id),
		}
	}
	if _, ok := a.siteIDs[id]; ok {
		return &ConsistencyError{
			Subject: "apache2",
			Detail:  fmt.Sprintf("site %q already exists", id),
		}
	}
	a.siteIDs[id] = struct{}{}
	a.sites = append(a.sites, site{id: id, config: config})
	return nil
}

func renderDirectives(b *strings.Builder, directives []Directive) {
	for _, d := range directives {
		fmt.Fprintf(b, "    %s %s\n", d.Name, d.Value)
	}
}

// renderSiteConfig renders the fixed-indentation site file consumed by
// the web server's configuration loader.
func renderSiteConfig(config SiteConfig) []byte {
	var b strings.Builder
	for _, host := range config.Hosts {
		fmt.Fprintf(&b, "\n<VirtualHost %s>\n", host.Addr)
		renderDirectives(&b, host.Directives)
		b.WriteString("</VirtualHost>\n")
	}
	for _, dir := range config.Directories {
		fmt.Fprintf(&b, "\n<Directory \"%s\">\n", dir.Path)
		renderDirectives(&b, dir.Directives)
		b.WriteString("</Directory>\n")
	}
	return []byte(b.String())
}

func (a *Apache2) installSiteFile(ctx context.Context, s site) error {
	sitePath := path.Join(apacheConfigDir, apacheSitesAvailableIn, s.id+".conf")
	return a.system.Target().WriteFile(ctx, sitePath, renderSiteConfig(s.config))
}

func (a *Apache2) enableSite(ctx context.Context, id string) error {
	_, err := a.system.Target().Run(ctx, target.Exec("a2ensite", id))
	return err
}

func (a *Apache2) disableSite(ctx context.Context, id string) error {
	_, err := a.system.Target().Run(ctx, target.Exec("a2dissite", id))
	return err
}

// Install installs the server packages, writes every registered site
// file, disables the stock default site and enables the registered
// ones.
func (a *Apache2) Install(ctx context.Context) error {
	a.log.Task("Install Apache2.")
	if err := a.system.UpdateUpgrade(ctx); err != nil {
		return err
	}
	if err := a.system.InstallPackages(ctx, "apache2", "libapache2-mod-php"); err != nil {
		return err
	}
	if _, err := a.system.Target().Run(ctx, target.Exec("a2enmod", "rewrite")); err != nil {
		return err
	}

	for _, s := range a.sites {
		if err := a.installSiteFile(ctx, s); err != nil {
			return err
		}
	}

	if err := a.disableSite(ctx, "000-default"); err != nil {
		return err
	}
	for _, s := range a.sites {
		if err := a.enableSite(ctx, s.id); err != nil {
			return err
		}
	}

	a.installed = true
	return nil
}

func (a *Apache2) manage(ctx context.Context, action string) error {
	return a.system.ManageService(ctx, "apache2", action)
}

// Start starts the server unless it is already observed started.
func (a *Apache2) Start(ctx context.Context) error {
	if a.started {
		return nil
	}
	if err := a.manage(ctx, "start"); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Restart restarts the server unconditionally.
func (a *Apache2) Restart(ctx context.Context) error {
	if err := a.manage(ctx, "restart"); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Stop stops the server if it is observed started.
func (a *Apache2) Stop(ctx context.Context) error {
	if !a.started {
		return nil
	}
	if err := a.manage(ctx, "stop"); err != nil {
		return err
	}
	a.started = false
	return nil
}
