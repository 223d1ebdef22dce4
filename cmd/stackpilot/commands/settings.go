package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings holds the deployment settings loaded from the settings file.
// These describe where and how to provision; the application's own
// key/value configuration lives in the separate persisted config store.
type Settings struct {
	// Transport selects the execution surface.
	Transport string `yaml:"transport" validate:"required,oneof=local docker ssh"`

	// Container is the container name for the docker transport.
	Container string `yaml:"container"`

	// SSH holds connection settings for the ssh transport.
	SSH SSHSettings `yaml:"ssh"`

	// ConfigPath is the persisted application configuration store.
	ConfigPath string `yaml:"config" validate:"required"`

	// StatePath enables the durable action ledger when set; empty
	// means the ledger lives in memory for one run only.
	StatePath string `yaml:"state"`
}

// SSHSettings mirrors target.SSHConfig for the settings file.
type SSHSettings struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=0,max=65535"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyPath string `yaml:"private_key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
}

// DefaultSettings returns the settings used when no settings file
// exists: provision the phabricator container through docker exec.
func DefaultSettings() *Settings {
	return &Settings{
		Transport:  "docker",
		Container:  "phabricator",
		ConfigPath: "config.yaml",
	}
}

// LoadSettings reads and validates the settings file at path. A missing
// file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	if err := validator.New().Struct(settings); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}

	// Cross-field requirements the tag language does not express well.
	switch settings.Transport {
	case "docker":
		if settings.Container == "" {
			return nil, fmt.Errorf("invalid settings %s: docker transport requires container", path)
		}
	case "ssh":
		if settings.SSH.Host == "" || settings.SSH.User == "" {
			return nil, fmt.Errorf("invalid settings %s: ssh transport requires host and user", path)
		}
	}

	return settings, nil
}
