package adapter

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NmapOption is a functional option for configuring NmapAdapter
type NmapOption func(*NmapAdapter)

// WithTimeout sets the timeout for the entire nmap scan.
// Non-positive values keep the default.
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapAdapter) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithBinaryPath points the adapter at a specific nmap executable instead of $PATH
func WithBinaryPath(path string) NmapOption {
	return func(n *NmapAdapter) {
		n.binaryPath = path
	}
}

// WithEngineFactory replaces the nmap engine, mainly for tests
func WithEngineFactory(factory EngineFactory) NmapOption {
	return func(n *NmapAdapter) {
		n.newEngine = factory
	}
}

// WithNmapLogger sets the logger used for scan tracing
func WithNmapLogger(log logrus.FieldLogger) NmapOption {
	return func(n *NmapAdapter) {
		if log != nil {
			n.log = log
		}
	}
}
