package scenario

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modubank/counselbot/internal/models"
)

// Load reads every *.json scenario document in dir, validates and compiles
// them into a Registry. Any malformed document fails the whole load: scenario
// configuration errors are fatal at startup, never deferred to runtime.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario documents found in %q", dir)
	}

	defs := make([]*models.ScenarioDefinition, 0, len(files))
	for _, path := range files {
		def, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	reg, err := NewRegistry(defs...)
	if err != nil {
		return nil, err
	}
	slog.Info("Scenario registry loaded", "dir", dir, "scenarios", reg.IDs())
	return reg, nil
}

// LoadFile reads and strictly decodes one scenario document. Unknown JSON
// keys are rejected so that typos in documents surface at load time.
func LoadFile(path string) (*models.ScenarioDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file %q: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var def models.ScenarioDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, &models.ScenarioConfigError{
			ScenarioID: strings.TrimSuffix(filepath.Base(path), ".json"),
			Detail:     "malformed scenario document",
			Err:        err,
		}
	}
	slog.Debug("Scenario document decoded", "path", path, "id", def.ID, "stages", len(def.Stages), "fields", len(def.FieldRegistry))
	return &def, nil
}
