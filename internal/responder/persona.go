package responder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

// Registry holds the available personas. Two ship built in; YAML files in
// the persona directory override them (or add new ones) by ID.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]domain.Persona
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		personas: make(map[string]domain.Persona),
		logger:   logger,
	}
	for _, p := range builtinPersonas() {
		r.personas[p.ID] = p
	}
	return r
}

// Get returns the persona for the given ID.
func (r *Registry) Get(id string) (domain.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return domain.Persona{}, fmt.Errorf("unknown persona: %s", id)
	}
	return p, nil
}

// LoadDirectory reads persona definitions from YAML files in dir. Files
// must have a .yaml or .yml extension. A file without an explicit ID takes
// its filename. Unreadable or malformed files are skipped with a warning.
func (r *Registry) LoadDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Debug("persona directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read persona dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("cannot read persona file", "path", path, "err", err)
			continue
		}

		var p domain.Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			r.logger.Warn("cannot parse persona file", "path", path, "err", err)
			continue
		}

		if p.ID == "" {
			p.ID = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if p.DisplayName == "" || p.SystemPrompt == "" {
			r.logger.Warn("persona file missing displayName or systemPrompt, skipping", "path", path)
			continue
		}

		r.mu.Lock()
		r.personas[p.ID] = p
		r.mu.Unlock()
		r.logger.Info("loaded persona", "id", p.ID, "path", path)
	}

	return nil
}

func builtinPersonas() []domain.Persona {
	return []domain.Persona{
		{
			ID:          PersonaAlwaysOn,
			DisplayName: "GharTek Assistant",
			SystemPrompt: "You are the support assistant for GharTek, a local home-delivery " +
				"service. Answer the customer's latest message helpfully and briefly, in a " +
				"friendly tone. You can discuss orders, delivery areas, timings and fees. " +
				"If the question needs a human (refunds, complaints about a rider, account " +
				"problems), say that a staff member will follow up shortly.",
		},
		{
			ID:          PersonaAfterHours,
			DisplayName: "GharTek Night Assistant",
			SystemPrompt: "You are the after-hours assistant for GharTek, a local home-delivery " +
				"service. Staff are currently offline; working hours are 9:00 to 21:00. " +
				"Answer what you can from general knowledge of the service, keep replies " +
				"short, and let the customer know a staff member will reply when the " +
				"service reopens.",
		},
	}
}
