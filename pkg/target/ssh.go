package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// SSHConfig holds SSH connection configuration for an SSHTarget.
type SSHConfig struct {
	// Host is the remote hostname or IP address.
	Host string

	// Port is the SSH port (default: 22).
	Port int

	// User is the SSH username.
	User string

	// Password for password-based authentication. Used when
	// PrivateKeyPath is empty.
	Password string

	// PrivateKeyPath is the path to the private key file.
	PrivateKeyPath string

	// KnownHostsPath is the path to the known_hosts file. If empty,
	// host key verification is disabled.
	KnownHostsPath string
}

// Validate checks the configuration for completeness.
func (c *SSHConfig) Validate() error {
	if c.Host == "" {
		return errors.New("ssh: host is required")
	}
	if c.User == "" {
		return errors.New("ssh: user is required")
	}
	if c.Password == "" && c.PrivateKeyPath == "" {
		return errors.New("ssh: either password or private key path is required")
	}
	return nil
}

// Address returns the dial address host:port.
func (c *SSHConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", port))
}

// buildClientConfig assembles the ssh.ClientConfig from the settings.
func (c *SSHConfig) buildClientConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if c.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.Password))
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.KnownHostsPath != "" {
		cb, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

// SSHTarget runs commands on a remote host over SSH, one session per
// command. File delivery goes through SFTP.
type SSHTarget struct {
	config *SSHConfig
	client *ssh.Client
	log    *telemetry.Logger
}

// NewSSHTarget creates an SSH target and establishes the connection.
func NewSSHTarget(config *SSHConfig, log *telemetry.Logger) (*SSHTarget, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	clientConfig, err := config.buildClientConfig()
	if err != nil {
		return nil, err
	}

	log.Debugf("establishing SSH connection to %s", config.Address())
	client, err := ssh.Dial("tcp", config.Address(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.Address(), err)
	}

	return &SSHTarget{
		config: config,
		client: client,
		log:    log,
	}, nil
}

// Close tears down the SSH connection.
func (t *SSHTarget) Close() error {
	return t.client.Close()
}

// Run executes a command strictly on the remote host.
func (t *SSHTarget) Run(ctx context.Context, cmd Command) (Result, error) {
	return t.execute(ctx, cmd, false)
}

// Try executes a command on the remote host as a probe.
func (t *SSHTarget) Try(ctx context.Context, cmd Command) (Result, error) {
	return t.execute(ctx, cmd, true)
}

func (t *SSHTarget) execute(ctx context.Context, cmd Command, tolerate bool) (Result, error) {
	if cmd.Empty() {
		return Result{}, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	session, err := t.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	t.log.ShellCommand(cmd.String())

	// Remote stdout is streamed to the logger as it arrives and
	// captured for the result; stderr is streamed only.
	var captured bytes.Buffer
	session.Stdout = io.MultiWriter(&captured, t.log.StdoutStream())
	session.Stderr = t.log.StderrStream()

	result := Result{}
	runErr := session.Run(cmd.shellScript())
	result.Stdout = captured.String()

	if runErr != nil {
		var exitErr *ssh.ExitError
		if !errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("run %q: %w", cmd.String(), runErr)
		}
		result.ExitCode = exitErr.ExitStatus()
	}

	if !tolerate && result.ExitCode != 0 {
		return result, &CommandError{
			Cmd:      cmd.String(),
			ExitCode: result.ExitCode,
			Output:   result.Stdout,
		}
	}
	return result, nil
}

// DoesFileExist probes for a file on the remote host.
func (t *SSHTarget) DoesFileExist(ctx context.Context, path string) (bool, error) {
	res, err := t.Try(ctx, Exec("test", "-e", path))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// WriteFile delivers content to path on the remote host over SFTP,
// replacing any existing file.
func (t *SSHTarget) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := sftp.NewClient(t.client)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer client.Close()

	f, err := client.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Addr describes the target for log output.
func (t *SSHTarget) Addr() string {
	return "ssh://" + t.config.User + "@" + t.config.Address()
}
