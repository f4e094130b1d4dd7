package notify

import (
	"fmt"
	"sort"
	"sync"

	"fleetd/internal/config"
	"fleetd/internal/util"
)

// Factory builds a Channel from the channel configuration. It returns
// ok=false when the configuration does not enable this channel.
type Factory func(cfg config.Channels) (Channel, bool)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a channel factory to the registry.
// It panics on empty name, nil factory, or duplicate registration
// (programmer errors detected at startup).
func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("notify: empty channel name")
	}
	if factory == nil {
		panic("notify: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("notify: channel %q already registered", name))
	}

	registry[normalizedName] = factory
}

// Build constructs every registered channel the configuration enables,
// in name order so channel selection is deterministic.
func Build(cfg config.Channels) []Channel {
	mu.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	mu.RUnlock()
	sort.Strings(names)

	var channels []Channel
	for _, name := range names {
		mu.RLock()
		factory := registry[name]
		mu.RUnlock()
		if ch, ok := factory(cfg); ok {
			channels = append(channels, ch)
		}
	}
	return channels
}

// List returns the names of all registered channels.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the channel registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

// RegisterDefaults registers the built-in channels.
func RegisterDefaults() {
	RegisterSlack()
	RegisterJira()
	RegisterEmail()
}
