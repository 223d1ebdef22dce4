package stack

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/target"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// defaultPHPIniPath is the php.ini consulted by the Apache module.
const defaultPHPIniPath = "/etc/php/7.2/apache2/php.ini"

// phpPackages is the runtime package set the web application needs.
var phpPackages = []string{
	"php",
	"php-mysql",
	"php-gd",
	"php-curl",
	"php-apcu",
	"php-cli",
	"php-json",
	"php-mbstring",
}

// PHP provisions the PHP runtime on a target.
type PHP struct {
	system *Ubuntu
	log    *telemetry.Logger

	// IniPath is the php.ini edited at install time. Override before
	// Install when targeting a different PHP version.
	IniPath string

	options map[string]string

	installed bool
}

// NewPHP creates the scripting runtime component on the given system.
func NewPHP(system *Ubuntu) *PHP {
	return &PHP{
		system:  system,
		log:     system.log.WithComponent("php"),
		IniPath: defaultPHPIniPath,
		options: make(map[string]string),
	}
}

// System returns the shared system helper.
func (p *PHP) System() *Ubuntu {
	return p.system
}

// Configure records php.ini options to be applied at install time.
func (p *PHP) Configure(options map[string]string) error {
	if p.installed {
		return configureAfterInstallError("php")
	}
	return mergeOptions("php", p.options, options)
}

// iniSedExpr builds the sed program rewriting one existing php.ini
// option in place. Dots in the option name are regex metacharacters and
// must be escaped.
func iniSedExpr(option, value string) string {
	escaped := strings.ReplaceAll(option, ".", `\.`)
	return fmt.Sprintf("/%s ?=/{ s#.*#%s = %s# }", escaped, option, value)
}

func (p *PHP) updateConfigFile(ctx context.Context) error {
	for _, option := range sortedOptionKeys(p.options) {
		expr := iniSedExpr(option, p.options[option])
		cmd := target.Exec("sed", "-i", "-r", expr, p.IniPath)
		if _, err := p.system.Target().Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Install installs the runtime packages and applies the recorded
// php.ini options.
func (p *PHP) Install(ctx context.Context) error {
	p.log.Task("Install PHP.")
	if err := p.system.UpdateUpgrade(ctx); err != nil {
		return err
	}
	if err := p.system.InstallPackages(ctx, phpPackages...); err != nil {
		return err
	}
	if err := p.updateConfigFile(ctx); err != nil {
		return err
	}
	p.installed = true
	return nil
}
