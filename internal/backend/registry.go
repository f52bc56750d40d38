package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goosewin/codeagent/internal/config"
)

var (
	ErrBackendNotFound   = errors.New("backend not found")
	ErrBackendRegistered = errors.New("backend already registered")
	ErrBackendInvalid    = errors.New("backend name is required")
)

// Factory builds a backend from resolved settings. It returns an error
// wrapping ErrNotConfigured when the settings do not enable the backend.
type Factory func(settings config.Settings) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
	order      []string
)

// Register adds a backend factory to the registry by name. Registration
// order is the preference order used by automatic selection.
func Register(name string, factory Factory) error {
	if strings.TrimSpace(name) == "" {
		return ErrBackendInvalid
	}
	if factory == nil {
		return errors.New("backend factory is nil")
	}

	key := normalize(name)
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[key]; exists {
		return ErrBackendRegistered
	}

	registry[key] = factory
	order = append(order, key)
	return nil
}

// New builds the backend registered under name.
func New(name string, settings config.Settings) (Backend, error) {
	key := normalize(name)
	if key == "" {
		return nil, ErrBackendInvalid
	}

	registryMu.RLock()
	factory, ok := registry[key]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	return factory(settings)
}

// Select resolves the backend named by settings.Backend. The name "auto"
// (or an empty name) tries every registered backend in registration order
// and returns the first one whose configuration is complete.
func Select(settings config.Settings) (Backend, error) {
	name := normalize(settings.Backend)
	if name != "" && name != AutoName {
		return New(name, settings)
	}

	registryMu.RLock()
	candidates := append([]string(nil), order...)
	registryMu.RUnlock()

	for _, candidate := range candidates {
		instance, err := New(candidate, settings)
		if err == nil {
			return instance, nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: set LLAMA_MODEL_PATH to a model file or OPENAI_API_KEY", ErrNotConfigured)
}

// Names returns all registered backend names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AutoName selects the first configured backend.
const AutoName = "auto"

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
