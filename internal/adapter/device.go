package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"neti/internal/domain"
)

// Device adapter defaults
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 60 * time.Second
	DefaultSSHPort        = 22
)

const authFailedMessage = "Authentication failed. Please check username and password."

// DeviceConfig holds configuration for the remote device adapter
type DeviceConfig struct {
	// ConnectTimeout bounds TCP connect plus SSH handshake
	ConnectTimeout time.Duration
	// CommandTimeout bounds the config dump once connected
	CommandTimeout time.Duration
	// Port is used when the host carries no port of its own
	Port int
}

// DeviceAdapter reads running configurations from network devices over SSH
type DeviceAdapter struct {
	dialer   SSHDialer
	hostKeys HostKeyPolicy
	config   DeviceConfig
	log      logrus.FieldLogger
}

// NewDeviceAdapter creates a device adapter. A nil dialer uses NetDialer.
func NewDeviceAdapter(dialer SSHDialer, hostKeys HostKeyPolicy, config DeviceConfig, log logrus.FieldLogger) *DeviceAdapter {
	if dialer == nil {
		dialer = NetDialer{}
	}
	if hostKeys == nil {
		hostKeys = insecurePolicy{}
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	if config.Port == 0 {
		config.Port = DefaultSSHPort
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &DeviceAdapter{
		dialer:   dialer,
		hostKeys: hostKeys,
		config:   config,
		log:      log.WithField("component", "device"),
	}
}

// Name returns the adapter identifier
func (d *DeviceAdapter) Name() string {
	return "device"
}

// Kind returns the target kind
func (d *DeviceAdapter) Kind() domain.TargetKind {
	return domain.TargetKindDevice
}

// ScanTypes returns the single config retrieval operation
func (d *DeviceAdapter) ScanTypes() []domain.ScanType {
	return []domain.ScanType{domain.ScanTypeDeviceConfig}
}

// Check has nothing to verify locally; reachability is per device
func (d *DeviceAdapter) Check(ctx context.Context) error {
	return nil
}

// FetchConfig logs in to host and returns the output of the device type's config command.
// Anything written to the remote error stream makes the call fail.
func (d *DeviceAdapter) FetchConfig(ctx context.Context, deviceType domain.DeviceType, host, username, password string) domain.DeviceConfigResult {
	addr := d.address(host)
	entry := d.log.WithFields(logrus.Fields{
		"target":      addr,
		"device_type": deviceType,
		"username":    username,
	})

	command, err := configCommand(deviceType)
	if err != nil {
		entry.WithError(err).Warn("Device: no config command")
		return domain.DeviceConfigError(deviceErrorMessage(err))
	}

	config, err := d.fetch(ctx, addr, command, username, password)
	if err != nil {
		entry.WithError(err).Warn("Device: config retrieval failed")
		return domain.DeviceConfigError(deviceErrorMessage(err))
	}
	if config.stderr != "" {
		entry.Info("Device: command reported errors")
		return domain.DeviceConfigError(config.stderr)
	}

	entry.WithField("bytes", len(config.stdout)).Info("Device: config retrieved")
	return domain.DeviceConfigCompleted(config.stdout)
}

type commandOutput struct {
	stdout string
	stderr string
}

// fetch owns the client and session for one call and closes both on every path
func (d *DeviceAdapter) fetch(ctx context.Context, addr, command, username, password string) (commandOutput, error) {
	clientConfig := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: d.hostKeys.Callback(ctx),
		Timeout:         d.config.ConnectTimeout,
	}

	client, err := d.dialer.Dial(ctx, addr, clientConfig)
	if err != nil {
		return commandOutput{}, classifyDialError(err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return commandOutput{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer session.Close()

	cmdCtx, cancel := context.WithTimeout(ctx, d.config.CommandTimeout)
	defer cancel()

	stdout, stderr, err := session.Exec(cmdCtx, command)
	if err != nil {
		return commandOutput{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return commandOutput{
		stdout: decodeText(stdout),
		stderr: decodeText(stderr),
	}, nil
}

// address appends the default port unless host already carries one
func (d *DeviceAdapter) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(d.config.Port))
}

// decodeText treats device output as UTF-8, replacing invalid sequences
func decodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// classifyDialError sorts a dial failure into auth, transport or unexpected
func classifyDialError(err error) error {
	if isAuthError(err) {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if isTransportError(err) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return err
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

func isTransportError(err error) bool {
	var netErr net.Error
	var keyErr *knownhosts.KeyError
	var revokedErr *knownhosts.RevokedError

	switch {
	case errors.As(err, &netErr):
		return true
	case errors.As(err, &keyErr), errors.As(err, &revokedErr), errors.Is(err, ErrHostKeyMismatch):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EHOSTUNREACH):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "handshake failed") ||
		strings.Contains(msg, "ssh: ")
}

// deviceErrorMessage maps a classified error to the operator-facing message
// configCommand returns the export command for deviceType, or ErrUnsupportedDevice
func configCommand(deviceType domain.DeviceType) (string, error) {
	command, ok := deviceType.ConfigCommand()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDevice, deviceType)
	}
	return command, nil
}

func deviceErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedDevice):
		return fmt.Sprintf("Unsupported device type: %s", strings.TrimPrefix(err.Error(), ErrUnsupportedDevice.Error()+": "))
	case errors.Is(err, ErrAuthFailed):
		return authFailedMessage
	case errors.Is(err, ErrTransport):
		return fmt.Sprintf("SSH connection error: %v", unwrapTransport(err))
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
}

// unwrapTransport drops the sentinel prefix so the message shows the cause
func unwrapTransport(err error) string {
	return strings.TrimPrefix(err.Error(), ErrTransport.Error()+": ")
}
