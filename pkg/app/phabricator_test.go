package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/ledger"
	"github.com/stackpilot/stackpilot/pkg/stack"
	"github.com/stackpilot/stackpilot/pkg/target"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// fakeTarget records commands instead of executing them. existing
// scripts the file-existence probes.
type fakeTarget struct {
	commands []string
	files    map[string][]byte
	existing map[string]bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		files:    make(map[string][]byte),
		existing: make(map[string]bool),
	}
}

func (f *fakeTarget) Run(_ context.Context, cmd target.Command) (target.Result, error) {
	f.commands = append(f.commands, cmd.String())
	return target.Result{}, nil
}

func (f *fakeTarget) Try(_ context.Context, cmd target.Command) (target.Result, error) {
	f.commands = append(f.commands, cmd.String())
	return target.Result{}, nil
}

func (f *fakeTarget) DoesFileExist(_ context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeTarget) WriteFile(_ context.Context, path string, content []byte) error {
	f.files[path] = content
	return nil
}

func (f *fakeTarget) Addr() string {
	return "fake"
}

func (f *fakeTarget) count(substr string) int {
	n := 0
	for _, cmd := range f.commands {
		if strings.Contains(cmd, substr) {
			n++
		}
	}
	return n
}

func (f *fakeTarget) indexOf(substr string) int {
	for i, cmd := range f.commands {
		if strings.Contains(cmd, substr) {
			return i
		}
	}
	return -1
}

func newComposite(t *testing.T, fake *fakeTarget, cfg *config.Store) *Phabricator {
	t.Helper()
	system := stack.NewUbuntu(fake, ledger.NewMemoryLedger(), telemetry.NewTestLogger())
	phab, err := New(
		stack.NewMariaDB(system),
		stack.NewApache2(system),
		stack.NewPHP(system),
		cfg, ledger.NewMemoryLedger(), telemetry.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return phab
}

func TestNewRejectsMismatchedTargets(t *testing.T) {
	fakeA := newFakeTarget()
	fakeB := newFakeTarget()
	log := telemetry.NewTestLogger()
	systemA := stack.NewUbuntu(fakeA, ledger.NewMemoryLedger(), log)
	systemB := stack.NewUbuntu(fakeB, ledger.NewMemoryLedger(), log)

	_, err := New(
		stack.NewMariaDB(systemA),
		stack.NewApache2(systemB),
		stack.NewPHP(systemA),
		config.NewStore(), ledger.NewMemoryLedger(), log)

	var consErr *stack.ConsistencyError
	if !errors.As(err, &consErr) {
		t.Fatalf("expected *ConsistencyError, got %v", err)
	}
	if len(fakeA.commands)+len(fakeB.commands) != 0 {
		t.Errorf("commands issued despite failed composition: %v %v",
			fakeA.commands, fakeB.commands)
	}
}

func TestNewRejectsSeparateSystemsOnOneTarget(t *testing.T) {
	fake := newFakeTarget()
	log := telemetry.NewTestLogger()
	systemA := stack.NewUbuntu(fake, ledger.NewMemoryLedger(), log)
	systemB := stack.NewUbuntu(fake, ledger.NewMemoryLedger(), log)

	_, err := New(
		stack.NewMariaDB(systemA),
		stack.NewApache2(systemA),
		stack.NewPHP(systemB),
		config.NewStore(), ledger.NewMemoryLedger(), log)

	var consErr *stack.ConsistencyError
	if !errors.As(err, &consErr) {
		t.Fatalf("expected *ConsistencyError, got %v", err)
	}
	if len(fake.commands) != 0 {
		t.Errorf("commands issued despite failed composition: %v", fake.commands)
	}
}

func TestNewSeedsDefaults(t *testing.T) {
	cfg := config.NewStore()
	newComposite(t, newFakeTarget(), cfg)

	for key, want := range map[string]string{
		"app.id":               "phabricator",
		"app.domain-base":      "dev.local",
		"app.domain-files":     "devfiles.local",
		"mysql.user.name":      "phabricator_mysql_user",
		"app.daemon.user.name": "phabricator_user",
		"app.site.id":          "phabricator_site",
	} {
		got, err := cfg.GetString(key)
		if err != nil {
			t.Errorf("default %q not seeded: %v", key, err)
			continue
		}
		if got != want {
			t.Errorf("default %q = %q, want %q", key, got, want)
		}
	}

	password, err := cfg.GetString("mysql.user.password")
	if err != nil {
		t.Fatalf("password not generated: %v", err)
	}
	if len(password) != 16 {
		t.Errorf("generated password %q has length %d, want 16", password, len(password))
	}
}

func TestNewPreservesLoadedValues(t *testing.T) {
	cfg := config.NewStore()
	cfg.Set("mysql.user.password", "persisted-secret")
	cfg.Set("app.domain-base", "phab.example.com")

	newComposite(t, newFakeTarget(), cfg)

	if got, _ := cfg.GetString("mysql.user.password"); got != "persisted-secret" {
		t.Errorf("loaded password clobbered: %q", got)
	}
	if got, _ := cfg.GetString("app.domain-base"); got != "phab.example.com" {
		t.Errorf("loaded domain clobbered: %q", got)
	}
}

func TestInstallClonesMissingComponents(t *testing.T) {
	fake := newFakeTarget()
	phab := newComposite(t, fake, config.NewStore())

	if err := phab.Install(context.Background()); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	for _, component := range []string{"libphutil", "arcanist", "phabricator"} {
		clone := "git clone https://github.com/phacility/" + component + ".git"
		if fake.count(clone) != 1 {
			t.Errorf("missing clone of %s; commands: %v", component, fake.commands)
		}
	}
	if fake.count("git pull") != 0 {
		t.Errorf("unexpected pull on first install; commands: %v", fake.commands)
	}
}

func TestInstallUpdatesExistingComponents(t *testing.T) {
	fake := newFakeTarget()
	fake.existing["/opt/phabricator/libphutil"] = true
	fake.existing["/opt/phabricator/arcanist"] = true
	fake.existing["/opt/phabricator/phabricator"] = true
	phab := newComposite(t, fake, config.NewStore())

	if err := phab.Install(context.Background()); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if fake.count("git clone") != 0 {
		t.Errorf("unexpected clone for existing checkout; commands: %v", fake.commands)
	}
	if fake.count("git pull") != 3 {
		t.Errorf("expected 3 pulls, got %d; commands: %v",
			fake.count("git pull"), fake.commands)
	}
}

func TestInstallSequenceOrder(t *testing.T) {
	fake := newFakeTarget()
	phab := newComposite(t, fake, config.NewStore())

	if err := phab.Install(context.Background()); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	// Dependency order, leaves first.
	milestones := []string{
		"apt-get update",
		"apt-get install --yes mariadb-server",
		"CREATE USER",
		"apt-get install --yes apache2",
		"apt-get install --yes php ",
		"git clone",
		"/opt/phabricator/phabricator/bin/config set mysql.user",
		"/opt/phabricator/phabricator/bin/storage upgrade",
		"service mysql restart",
		"/opt/phabricator/phabricator/bin/phd restart",
		"service apache2 restart",
	}

	last := -1
	for _, milestone := range milestones {
		idx := fake.indexOf(milestone)
		if idx < 0 {
			t.Fatalf("milestone %q missing; commands: %v", milestone, fake.commands)
		}
		if idx < last {
			t.Errorf("milestone %q out of order (index %d after %d)", milestone, idx, last)
		}
		last = idx
	}
}

func TestInstallAppliesConfiguration(t *testing.T) {
	fake := newFakeTarget()
	cfg := config.NewStore()
	phab := newComposite(t, fake, cfg)

	if err := phab.Install(context.Background()); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	password, _ := cfg.GetString("mysql.user.password")
	for _, setting := range []string{
		"config set mysql.user phabricator_mysql_user",
		"config set mysql.pass " + password,
		"config set phabricator.base-uri http://dev.local/",
		"config set security.alternate-file-domain http://devfiles.local/",
		"config set pygments.enabled true",
		"config set repository.default-local-path /opt/repos",
		"config set storage.local-disk.path /opt/files",
	} {
		if fake.count(setting) != 1 {
			t.Errorf("configuration %q not applied; commands: %v", setting, fake.commands)
		}
	}

	site, ok := fake.files["/etc/apache2/sites-available/phabricator_site.conf"]
	if !ok {
		t.Fatalf("site file not written; files: %v", fake.files)
	}
	if !strings.Contains(string(site), "DocumentRoot /opt/phabricator/phabricator/webroot") {
		t.Errorf("site file missing webroot: %s", site)
	}
}

func TestStartIsGatedDaemonRestartIsNot(t *testing.T) {
	fake := newFakeTarget()
	phab := newComposite(t, fake, config.NewStore())
	ctx := context.Background()

	if err := phab.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := phab.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if got := fake.count("service mysql start"); got != 1 {
		t.Errorf("expected 1 mysql start, got %d", got)
	}
	if got := fake.count("service apache2 start"); got != 1 {
		t.Errorf("expected 1 apache2 start, got %d", got)
	}
	// The application daemon is always restarted.
	if got := fake.count("bin/phd restart"); got != 2 {
		t.Errorf("expected 2 phd restarts, got %d", got)
	}
}

func TestStopReversesOrder(t *testing.T) {
	fake := newFakeTarget()
	phab := newComposite(t, fake, config.NewStore())
	ctx := context.Background()

	if err := phab.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := phab.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	web := fake.indexOf("service apache2 stop")
	daemon := fake.indexOf("bin/phd stop")
	db := fake.indexOf("service mysql stop")
	if web < 0 || daemon < 0 || db < 0 {
		t.Fatalf("stop commands missing; commands: %v", fake.commands)
	}
	if !(web < daemon && daemon < db) {
		t.Errorf("stop order wrong: web=%d daemon=%d db=%d", web, daemon, db)
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		password := GeneratePassword()
		if len(password) != 16 {
			t.Fatalf("password %q has length %d, want 16", password, len(password))
		}
		for _, c := range password {
			if !strings.ContainsRune(passwordAlphabet, c) {
				t.Fatalf("password %q contains %q outside the alphabet", password, c)
			}
		}
		seen[password] = true
	}
	if len(seen) < 2 {
		t.Error("passwords are not random")
	}
}
