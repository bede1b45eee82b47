package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"neti/internal/repository"
)

// Host key policies
const (
	HostKeyPolicyInsecure   = "insecure"
	HostKeyPolicyTOFU       = "tofu"
	HostKeyPolicyKnownHosts = "known_hosts"
)

// ErrHostKeyMismatch is returned when a device presents a key other than the pinned one
var ErrHostKeyMismatch = errors.New("host key mismatch")

// HostKeyPolicy decides whether a presented host key is acceptable
type HostKeyPolicy interface {
	// Callback returns the ssh callback for one connection attempt
	Callback(ctx context.Context) ssh.HostKeyCallback
	// Name returns the policy identifier
	Name() string
}

// NewHostKeyPolicy builds the named policy. store is required for tofu,
// knownHostsPath for known_hosts.
func NewHostKeyPolicy(name string, store repository.HostKeyRepository, knownHostsPath string, log logrus.FieldLogger) (HostKeyPolicy, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch name {
	case HostKeyPolicyInsecure:
		return insecurePolicy{}, nil
	case HostKeyPolicyTOFU, "":
		if store == nil {
			return nil, errors.New("tofu host key policy requires a host key store")
		}
		return &TOFUPolicy{store: store, log: log.WithField("component", "hostkey")}, nil
	case HostKeyPolicyKnownHosts:
		cb, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", knownHostsPath, err)
		}
		return knownHostsPolicy{callback: cb}, nil
	default:
		return nil, fmt.Errorf("unknown host key policy %q", name)
	}
}

type insecurePolicy struct{}

func (insecurePolicy) Name() string { return HostKeyPolicyInsecure }

func (insecurePolicy) Callback(context.Context) ssh.HostKeyCallback {
	return ssh.InsecureIgnoreHostKey()
}

type knownHostsPolicy struct {
	callback ssh.HostKeyCallback
}

func (knownHostsPolicy) Name() string { return HostKeyPolicyKnownHosts }

func (p knownHostsPolicy) Callback(context.Context) ssh.HostKeyCallback {
	return p.callback
}

// TOFUPolicy pins the first key a host presents and refuses any other key afterwards
type TOFUPolicy struct {
	store repository.HostKeyRepository
	log   logrus.FieldLogger
}

// Name returns the policy identifier
func (p *TOFUPolicy) Name() string { return HostKeyPolicyTOFU }

// Callback returns a callback that checks keys against the store
func (p *TOFUPolicy) Callback(ctx context.Context) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		host := knownhosts.Normalize(hostname)
		fingerprint := ssh.FingerprintSHA256(key)
		entry := p.log.WithFields(logrus.Fields{
			"host":        host,
			"fingerprint": fingerprint,
		})

		pinned, err := p.store.GetHostKey(ctx, host)
		if errors.Is(err, repository.ErrNotFound) {
			now := time.Now().UTC()
			if err := p.store.PinHostKey(ctx, &repository.HostKey{
				Host:        host,
				KeyType:     key.Type(),
				Key:         key.Marshal(),
				Fingerprint: fingerprint,
				FirstSeen:   now,
				LastSeen:    now,
			}); err != nil {
				return fmt.Errorf("pin host key: %w", err)
			}
			entry.Info("HostKey: pinned new host key")
			return nil
		}
		if err != nil {
			return fmt.Errorf("look up host key: %w", err)
		}

		if pinned.KeyType != key.Type() || !bytes.Equal(pinned.Key, key.Marshal()) {
			entry.WithField("pinned", pinned.Fingerprint).Warn("HostKey: presented key does not match pinned key")
			return fmt.Errorf("%w for %s: pinned %s, presented %s", ErrHostKeyMismatch, host, pinned.Fingerprint, fingerprint)
		}

		if err := p.store.TouchHostKey(ctx, host, time.Now().UTC()); err != nil {
			entry.WithError(err).Debug("HostKey: failed to update last seen")
		}
		return nil
	}
}
