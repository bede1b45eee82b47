package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
)

// Registry keeps the scan adapters known to this process and their
// last preflight result
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
	status   map[string]error
	checked  map[string]bool
	log      logrus.FieldLogger
}

// NewRegistry creates an empty adapter registry
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		status:   make(map[string]error),
		checked:  make(map[string]bool),
		log:      log,
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	r.adapters[name] = adapter
	r.order = append(r.order, name)
	r.log.WithFields(logrus.Fields{
		"adapter":    name,
		"kind":       adapter.Kind(),
		"scan_types": adapter.ScanTypes(),
	}).Debug("Registry: registered adapter")

	return nil
}

// Get returns a registered adapter by name
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// CheckAll runs every adapter's preflight check and records the outcome.
// Failures are logged, not returned, so one missing tool does not stop the rest.
func (r *Registry) CheckAll(ctx context.Context) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range names {
		adapter, _ := r.Get(name)
		err := adapter.Check(ctx)

		r.mu.Lock()
		r.status[name] = err
		r.checked[name] = true
		r.mu.Unlock()

		entry := r.log.WithField("adapter", name)
		if err != nil {
			entry.WithError(err).Warn("Registry: adapter unavailable")
			continue
		}
		entry.Debug("Registry: adapter ready")
	}
}

// AdapterInfo provides read-only information about an adapter
type AdapterInfo struct {
	Name      string            `json:"name"`
	Kind      domain.TargetKind `json:"kind"`
	ScanTypes []domain.ScanType `json:"scan_types"`
	Checked   bool              `json:"checked"`
	Available bool              `json:"available"`
	Error     string            `json:"error,omitempty"`
}

// ListAdapters returns information about registered adapters, sorted by kind then name
func (r *Registry) ListAdapters() []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for _, name := range r.order {
		adapter := r.adapters[name]
		info := AdapterInfo{
			Name:      name,
			Kind:      adapter.Kind(),
			ScanTypes: adapter.ScanTypes(),
			Checked:   r.checked[name],
		}
		if err := r.status[name]; err != nil {
			info.Error = err.Error()
		} else {
			info.Available = info.Checked
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Kind != infos[j].Kind {
			return infos[i].Kind < infos[j].Kind
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}
