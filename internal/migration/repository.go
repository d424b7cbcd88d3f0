package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Repository stores one migration per JSON file in a directory,
// NNNN_name.json, grouped in per-app subdirectories:
//
//	migrations/
//	  shop/0001_initial.json
//	  shop/0002_auto_order_add.json
//	  crm/0001_initial.json
type Repository struct {
	dir string
}

func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

func (r *Repository) Dir() string {
	return r.dir
}

// Load reads every migration file under the repository directory. Files
// are read in sorted path order; actual apply order comes from the
// graph, not the filesystem.
func (r *Repository) Load() ([]*Migration, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		appDir := filepath.Join(r.dir, entry.Name())
		files, err := os.ReadDir(appDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read app directory %s: %w", appDir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			paths = append(paths, filepath.Join(appDir, f.Name()))
		}
	}
	sort.Strings(paths)

	migrations := make([]*Migration, 0, len(paths))
	for _, path := range paths {
		m, err := r.loadFile(path)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

func (r *Repository) loadFile(path string) (*Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file %s: %w", path, err)
	}
	var m Migration
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse migration file %s: %w", path, err)
	}
	return &m, nil
}

// Save writes a migration to its canonical path, creating the app
// directory as needed. Overwriting an existing migration is refused.
func (r *Repository) Save(m *Migration) (string, error) {
	appDir := filepath.Join(r.dir, m.App)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	path := filepath.Join(appDir, m.Name+".json")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration file %s already exists", path)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode migration %s: %w", m.Key(), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write migration file %s: %w", path, err)
	}
	return path, nil
}

// NextName returns the next ordinal-prefixed migration name for an app,
// 0001_initial for an empty app, 000N_<suffix> afterwards.
func (r *Repository) NextName(app, suffix string) (string, error) {
	migrations, err := r.Load()
	if err != nil {
		return "", err
	}

	highest := 0
	for _, m := range migrations {
		if m.App != app {
			continue
		}
		if n, ok := ordinalOf(m.Name); ok && n > highest {
			highest = n
		}
	}

	if highest == 0 {
		return "0001_initial", nil
	}
	if suffix == "" {
		suffix = "auto"
	}
	return fmt.Sprintf("%04d_%s", highest+1, suffix), nil
}

// LatestKeys returns the newest migration key per app, used to wire a
// freshly generated migration to its predecessors.
func (r *Repository) LatestKeys() (map[string]Key, error) {
	migrations, err := r.Load()
	if err != nil {
		return nil, err
	}

	latest := make(map[string]Key)
	highest := make(map[string]int)
	for _, m := range migrations {
		n, ok := ordinalOf(m.Name)
		if !ok {
			continue
		}
		if n > highest[m.App] {
			highest[m.App] = n
			latest[m.App] = m.Key()
		}
	}
	return latest, nil
}

func ordinalOf(name string) (int, bool) {
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, false
	}
	return n, true
}
