package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the frame settings that may change while streaming, so the
// dashboard can trade image quality for bandwidth without a restart.
// Capture sources read it before every frame.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// OnConfigChange is called after a successful update.
	OnConfigChange func(cfg Config)
}

// NewManager creates a manager seeded with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig replaces the configuration after validating it.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		callback(cfg)
	}
	return nil
}

// UpdateConfig applies the tunable fields present in params.
// Mode and device selection are fixed for the run and ignored here.
func (m *Manager) UpdateConfig(params map[string]any) error {
	cfg := m.GetConfig()

	for key, value := range params {
		switch key {
		case "quality":
			v, ok := toInt(value)
			if !ok {
				return fmt.Errorf("quality must be a number")
			}
			cfg.Quality = v
		case "max_dimension":
			v, ok := toInt(value)
			if !ok {
				return fmt.Errorf("max_dimension must be a number")
			}
			cfg.MaxDimension = v
		default:
			return fmt.Errorf("unknown or read-only setting %q", key)
		}
	}

	return m.SetConfig(cfg)
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
