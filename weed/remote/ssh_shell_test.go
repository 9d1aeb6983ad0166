package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type execHandler func(command string) (stdout, stderr string, status uint32)

// startSSHServer serves exec requests on a random local port.
func startSSHServer(t *testing.T, handler execHandler) (port int, clientKey ssh.Signer) {
	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostKey, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)
	_, clientPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	clientKey, err = ssh.NewSignerFromKey(clientPriv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), clientKey.PublicKey().Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, config, handler)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, clientKey
}

func serveSSH(conn net.Conn, config *ssh.ServerConfig, handler execHandler) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer channel.Close()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)
				stdout, stderr, status := handler(payload.Command)
				_, _ = channel.Write([]byte(stdout))
				_, _ = channel.Stderr().Write([]byte(stderr))
				_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				return
			}
		}()
	}
}

func TestSSHShellExecute(t *testing.T) {
	var mu sync.Mutex
	var received []string
	port, clientKey := startSSHServer(t, func(command string) (string, string, uint32) {
		mu.Lock()
		received = append(received, command)
		mu.Unlock()
		if bytes.Contains([]byte(command), []byte("missing")) {
			return "", "ls: cannot access\n", 2
		}
		return "line1\nline2\n", "", 0
	})

	clientConfig := &ssh.ClientConfig{
		User:            "admin",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(clientKey)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	shell := NewSSHShell("127.0.0.1", &SSHConfig{Port: port, SudoUser: "root"}, clientConfig)
	defer shell.Close()

	ctx := context.Background()
	result, err := shell.Execute(ctx, "ls /weedfs")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, []string{"line1", "line2"}, result.Output)

	result, err = shell.Execute(ctx, "ls /missing")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ExitCode)
	assert.Equal(t, "ls: cannot access\n", result.Stderr)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"sudo -n -u root -- sh -c 'ls /weedfs'",
		"sudo -n -u root -- sh -c 'ls /missing'",
	}, received)
}

func TestSSHShellWithoutSudo(t *testing.T) {
	var received string
	port, clientKey := startSSHServer(t, func(command string) (string, string, uint32) {
		received = command
		return "", "", 0
	})

	clientConfig := &ssh.ClientConfig{
		User:            "root",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(clientKey)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	shell := NewSSHShell("127.0.0.1", &SSHConfig{Port: port, SudoUser: "root"}, clientConfig)
	defer shell.Close()

	_, err := shell.Execute(context.Background(), "supervisorctl status")
	require.NoError(t, err)
	assert.Equal(t, "supervisorctl status", received)
}

func TestSSHShellConnectError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	clientConfig := &ssh.ClientConfig{
		User:            "root",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Second,
	}
	shell := NewSSHShell("127.0.0.1", &SSHConfig{Port: port}, clientConfig)
	_, err = shell.Execute(context.Background(), "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
}
