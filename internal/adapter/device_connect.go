package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHDialer opens an authenticated SSH client
type SSHDialer interface {
	Dial(ctx context.Context, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// SSHClient is the part of *ssh.Client the device adapter uses
type SSHClient interface {
	NewSession() (SSHSession, error)
	Close() error
}

// SSHSession runs exactly one remote command
type SSHSession interface {
	// Exec runs cmd and returns both streams read to completion
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, err error)
	Close() error
}

// NetDialer dials over TCP and performs the SSH handshake
type NetDialer struct{}

// Dial connects to addr. config.Timeout bounds both the TCP connect and the handshake.
func (NetDialer) Dial(ctx context.Context, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	dialer := &net.Dialer{
		Timeout: config.Timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	// Bound the handshake too; net.Dialer only covers the TCP connect
	if config.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(config.Timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	conn.SetDeadline(time.Time{})

	return &sshClient{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

type sshClient struct {
	client *ssh.Client
}

func (c *sshClient) NewSession() (SSHSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &sshSession{session: session}, nil
}

func (c *sshClient) Close() error {
	return c.client.Close()
}

type sshSession struct {
	session *ssh.Session
}

// Exec runs cmd, killing the remote command if ctx ends first.
// A non-zero remote exit status is not an error.
func (s *sshSession) Exec(ctx context.Context, cmd string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	s.session.Stdout = &stdout
	s.session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- s.session.Run(cmd)
	}()

	select {
	case err := <-done:
		var exitErr *ssh.ExitError
		var missing *ssh.ExitMissingError
		if err != nil && !errors.As(err, &exitErr) && !errors.As(err, &missing) {
			return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("command failed: %w", err)
		}
		return stdout.Bytes(), stderr.Bytes(), nil
	case <-ctx.Done():
		s.session.Signal(ssh.SIGKILL)
		s.session.Close()
		<-done
		return nil, nil, fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

func (s *sshSession) Close() error {
	return s.session.Close()
}
