package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/brstgt/seaweed-admin/weed/util"
)

type SSHConfig struct {
	User           string
	Port           int
	KeyFile        string
	KnownHostsFile string
	// SudoUser, when set, runs every command through sudo as that user.
	SudoUser string
	Timeout  time.Duration
}

// ClientConfig builds the ssh client configuration shared by all hosts.
func (c *SSHConfig) ClientConfig() (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(util.ResolvePath(c.KeyFile))
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", c.KeyFile, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.KnownHostsFile != "" {
		if hostKeyCallback, err = knownhosts.New(util.ResolvePath(c.KnownHostsFile)); err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	} else {
		glog.Warningf("ssh.known_hosts is not configured, host keys are not verified")
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// SSHShell keeps one ssh connection per host open and opens a session per command.
type SSHShell struct {
	host         string
	addr         string
	sudoUser     string
	clientConfig *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
}

func NewSSHShell(host string, config *SSHConfig, clientConfig *ssh.ClientConfig) *SSHShell {
	port := config.Port
	if port == 0 {
		port = 22
	}
	return &SSHShell{
		host:         host,
		addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		sudoUser:     config.SudoUser,
		clientConfig: clientConfig,
	}
}

// SSHDialer returns a Dialer creating SSHShells that share one client configuration.
func SSHDialer(config *SSHConfig) (Dialer, error) {
	clientConfig, err := config.ClientConfig()
	if err != nil {
		return nil, err
	}
	return func(host string) (Shell, error) {
		return NewSSHShell(host, config, clientConfig), nil
	}, nil
}

func (s *SSHShell) Host() string {
	return s.host
}

func (s *SSHShell) connect() (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := ssh.Dial("tcp", s.addr, s.clientConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh %s: %w", s.addr, err)
	}
	glog.V(2).Infof("ssh connected to %s", s.addr)
	s.client = client
	return client, nil
}

func (s *SSHShell) reset(client *ssh.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == client {
		s.client.Close()
		s.client = nil
	}
}

func (s *SSHShell) wrap(command string) string {
	if s.sudoUser == "" || s.sudoUser == s.clientConfig.User {
		return command
	}
	return "sudo -n -u " + Quote(s.sudoUser) + " -- sh -c " + Quote(command)
}

func (s *SSHShell) Execute(ctx context.Context, command string) (*Result, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		s.reset(client)
		return nil, fmt.Errorf("ssh session on %s: %w", s.host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	glog.V(3).Infof("%s$ %s", s.host, command)
	done := make(chan error, 1)
	go func() {
		done <- session.Run(s.wrap(command))
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	case err = <-done:
	}

	result := &Result{
		Output: splitLines(stdout.String()),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		s.reset(client)
		return nil, fmt.Errorf("run %q on %s: %w", command, s.host, err)
	}
	return result, nil
}

func (s *SSHShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
