package build

import (
	"fmt"
	"sort"

	"github.com/cochaviz/quern/internal/config"
)

// DriverRegistry resolves build drivers by name.
type DriverRegistry struct {
	factories map[string]DriverFactory
}

func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{factories: map[string]DriverFactory{}}
}

// Register adds or replaces the driver called name.
func (r *DriverRegistry) Register(name string, factory DriverFactory) {
	r.factories[name] = factory
}

// Lookup returns the factory registered under name.
func (r *DriverRegistry) Lookup(name string) (DriverFactory, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &config.ConfigurationError{
			Option: "build.driver",
			Reason: fmt.Sprintf("unknown driver %q (known: %v)", name, r.Names()),
			Err:    ErrUnknownDriver,
		}
	}
	return factory, nil
}

// Names lists the registered drivers in lexical order.
func (r *DriverRegistry) Names() []string {
	return sortedKeys(r.factories)
}

// PostBuildRegistry resolves post-build engines by name.
type PostBuildRegistry struct {
	factories map[string]PostBuilderFactory
}

func NewPostBuildRegistry() *PostBuildRegistry {
	return &PostBuildRegistry{factories: map[string]PostBuilderFactory{}}
}

// Register adds or replaces the engine called name.
func (r *PostBuildRegistry) Register(name string, factory PostBuilderFactory) {
	r.factories[name] = factory
}

// Lookup returns the factory registered under name.
func (r *PostBuildRegistry) Lookup(name string) (PostBuilderFactory, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &config.ConfigurationError{
			Option: "postbuild.engines",
			Reason: fmt.Sprintf("unknown engine %q (known: %v)", name, r.Names()),
			Err:    ErrUnknownEngine,
		}
	}
	return factory, nil
}

// Names lists the registered engines in lexical order.
func (r *PostBuildRegistry) Names() []string {
	return sortedKeys(r.factories)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
