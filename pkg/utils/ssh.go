// pkg/utils/ssh.go

package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig holds SSH connection configuration
type SSHConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	KeyFile  string
	Timeout  time.Duration
}

// SSHConnection represents an SSH connection to a remote host
type SSHConnection struct {
	Config *SSHConfig
	Client *ssh.Client
}

// NewSSHConnection creates a new SSH connection
func NewSSHConnection(config *SSHConfig) (*SSHConnection, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("ssh host is required")
	}
	if config.Port == "" {
		config.Port = "22"
	}
	if config.User == "" {
		config.User = "root"
	}
	return &SSHConnection{Config: config}, nil
}

// Connect establishes the SSH connection
func (s *SSHConnection) Connect() error {
	var authMethods []ssh.AuthMethod

	if s.Config.Password != "" {
		authMethods = append(authMethods, ssh.Password(s.Config.Password))
	} else {
		keyFile := s.Config.KeyFile
		if keyFile == "" {
			keyFile = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keyAuth, err := keyAuth(keyFile)
		if err != nil {
			return fmt.Errorf("no authentication method available: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	sshConfig := &ssh.ClientConfig{
		User:            s.Config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: verify against known_hosts once --known-hosts exists
		Timeout:         s.Config.Timeout,
	}

	if s.Client != nil {
		s.Client.Close()
		s.Client = nil
	}

	address := net.JoinHostPort(s.Config.Host, s.Config.Port)
	client, err := ssh.Dial("tcp", address, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	s.Client = client
	return nil
}

// keyAuth loads an unencrypted private key
func keyAuth(keyFile string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key %s: %w", keyFile, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s (it may be passphrase-protected): %w", keyFile, err)
	}

	return ssh.PublicKeys(signer), nil
}

// run executes a shell command line on the remote host, feeding stdin when
// given. The session is killed when ctx is done.
func (s *SSHConnection) run(ctx context.Context, cmdline string, stdin []byte) (string, error) {
	if s.Client == nil {
		if err := s.Connect(); err != nil {
			return "", fmt.Errorf("SSH client not connected and reconnection failed: %w", err)
		}
	}

	session, err := s.Client.NewSession()
	if err != nil {
		// The connection may have dropped, reconnect once
		if err := s.Connect(); err != nil {
			return "", fmt.Errorf("failed to create session and reconnection failed: %w", err)
		}
		session, err = s.Client.NewSession()
		if err != nil {
			return "", fmt.Errorf("failed to create session after reconnection: %w", err)
		}
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmdline) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out.String(), fmt.Errorf("%w: %s", ErrTimeout, cmdline)
		}
		return out.String(), ctx.Err()
	}

	if err != nil {
		return out.String(), fmt.Errorf("remote command '%s' failed: %w", cmdline, err)
	}
	return out.String(), nil
}

// Close closes the SSH connection
func (s *SSHConnection) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// RemoteExecutor executes commands via SSH
type RemoteExecutor struct {
	hostname   string
	timeout    time.Duration
	connection *SSHConnection
}

// NewRemoteExecutor connects to the configured host
func NewRemoteExecutor(config *SSHConfig, timeout time.Duration) (*RemoteExecutor, error) {
	conn, err := NewSSHConnection(config)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(); err != nil {
		return nil, err
	}

	e := &RemoteExecutor{connection: conn, timeout: timeout, hostname: config.Host}
	if hostname, err := e.RunCommand(context.Background(), "hostname", "-f"); err == nil && strings.TrimSpace(hostname) != "" {
		e.hostname = strings.TrimSpace(hostname)
	}
	return e, nil
}

// RunCommand executes a command remotely. The time bound is enforced both
// by the context and by coreutils timeout on the remote side.
func (e *RemoteExecutor) RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellQuote(name))
	for _, arg := range args {
		parts = append(parts, ShellQuote(arg))
	}
	cmdline := strings.Join(parts, " ")
	if e.timeout > 0 {
		cmdline = "timeout " + strconv.Itoa(int(e.timeout.Seconds())) + " " + cmdline
	}
	return e.connection.run(ctx, "LC_ALL=C "+cmdline, nil)
}

// Timeout returns the per command bound.
func (e *RemoteExecutor) Timeout() time.Duration {
	return e.timeout
}

// WithTimeout returns an executor on the same connection bounding every
// command by timeout. Closing either closes the connection.
func (e *RemoteExecutor) WithTimeout(timeout time.Duration) CommandExecutor {
	return &RemoteExecutor{hostname: e.hostname, timeout: timeout, connection: e.connection}
}

// ReadFile reads a remote file with cat
func (e *RemoteExecutor) ReadFile(ctx context.Context, p string) ([]byte, error) {
	out, err := e.RunCommand(ctx, "cat", p)
	if err != nil {
		if strings.Contains(out, "No such file") {
			return nil, fmt.Errorf("%s: %w", p, os.ErrNotExist)
		}
		return nil, err
	}
	return []byte(out), nil
}

// WriteFile streams data to a remote file over stdin
func (e *RemoteExecutor) WriteFile(ctx context.Context, p string, data []byte) error {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	cmdline := fmt.Sprintf("mkdir -p %s && cat > %s", ShellQuote(path.Dir(p)), ShellQuote(p))
	_, err := e.connection.run(ctx, cmdline, data)
	return err
}

// LookPath checks the remote PATH
func (e *RemoteExecutor) LookPath(ctx context.Context, name string) bool {
	_, err := e.RunCommand(ctx, "sh", "-c", "command -v "+ShellQuote(name))
	return err == nil
}

// GetHostname returns the remote hostname
func (e *RemoteExecutor) GetHostname() string {
	return e.hostname
}

// IsLocal returns false for remote executor
func (e *RemoteExecutor) IsLocal() bool {
	return false
}

// Close closes the remote connection
func (e *RemoteExecutor) Close() error {
	if e.connection != nil {
		return e.connection.Close()
	}
	return nil
}
