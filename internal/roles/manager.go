// README: Role criteria manager. Criteria are short operating rules shown per
// role; they live in a JSON file next to the server so admins can edit them
// without a database migration.
package roles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"sharetray/internal/types"
)

var ErrUnknownRole = errors.New("unknown role")

type Manager struct {
	mu       sync.RWMutex
	path     string
	criteria map[types.Role][]string
}

func NewManager(path string) *Manager {
	return &Manager{path: path, criteria: map[types.Role][]string{}}
}

// Load reads the criteria file. A missing file is seeded with defaults and
// written back.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.criteria = defaults()
		return m.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("read criteria file: %w", err)
	}
	parsed := map[types.Role][]string{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse criteria file: %w", err)
	}
	m.criteria = parsed
	return nil
}

func (m *Manager) Get(role types.Role) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	criteria, ok := m.criteria[role]
	if !ok {
		return nil, false
	}
	return append([]string(nil), criteria...), true
}

func (m *Manager) All() map[types.Role][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.Role][]string, len(m.criteria))
	for role, criteria := range m.criteria {
		out[role] = append([]string(nil), criteria...)
	}
	return out
}

// Set replaces a role's criteria and persists the file.
func (m *Manager) Set(role types.Role, criteria []string) error {
	if !types.ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria[role] = append([]string(nil), criteria...)
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.criteria, "", "  ")
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write criteria file: %w", err)
	}
	return nil
}

func defaults() map[types.Role][]string {
	return map[types.Role][]string{
		types.RoleDonor: {
			"Post donation with name, weight, perishability, pickup window, and location.",
		},
		types.RoleRecipient: {
			"Accept or reject matches; capacity updates when accepted.",
		},
		types.RoleVolunteer: {
			"Receive ordered route; mark pickup in-progress and completed.",
		},
		types.RoleAdmin: {
			"View totals and export transactions CSV.",
		},
	}
}
