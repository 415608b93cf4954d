// Package featureflags evaluates rollout flags from configuration.
package featureflags

import (
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Flags read by the client library.
const (
	// AtomicFollow routes follow/unfollow through the transactional edge endpoint.
	AtomicFollow = "atomic_follow"
	// ServerCounters uses the atomic increment endpoint for denormalized counters.
	ServerCounters = "server_counters"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "atomic_follow=on,server_counters=25%,legacy_feed=off"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given user.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic user rollout, e.g. 25%)
func (m *Manager) Enabled(name string, userID string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if userID == "" {
			return false
		}
		return rolloutBucket(name, userID) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.flags)
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID string) map[string]bool {
	out := make(map[string]bool, len(m.Raw()))
	for name := range m.Raw() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + userID))
	return int(h.Sum32() % 100)
}
