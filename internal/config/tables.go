package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/freeeve/qdice/pkg/dice"
)

//go:embed tables.yaml
var defaultTables []byte

type tablesFile struct {
	Tables []dice.Config `yaml:"tables"`
}

// LoadTables reads table definitions from path, or the built-in set when
// path is empty.
func LoadTables(path string) ([]dice.Config, error) {
	data := defaultTables
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tables file: %w", err)
		}
	}
	return ParseTables(data)
}

// ParseTables decodes a tables document and fills defaults.
func ParseTables(data []byte) ([]dice.Config, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("parse tables: no tables defined")
	}
	seen := make(map[string]bool, len(f.Tables))
	for i := range f.Tables {
		t := &f.Tables[i]
		if t.Tag == "" {
			return nil, fmt.Errorf("table %d: missing tag", i)
		}
		if seen[t.Tag] {
			return nil, fmt.Errorf("table %s: duplicate tag", t.Tag)
		}
		seen[t.Tag] = true
		if t.MapName == "" {
			return nil, fmt.Errorf("table %s: missing mapName", t.Tag)
		}
		if t.PlayerSlots == 0 {
			t.PlayerSlots = 7
		}
		if t.StartSlots == 0 {
			t.StartSlots = t.PlayerSlots
		}
		if t.StackSize == 0 {
			t.StackSize = 4
		}
		if t.StartSlots < 2 || t.StartSlots > t.PlayerSlots {
			return nil, fmt.Errorf("table %s: startSlots %d outside 2..%d", t.Tag, t.StartSlots, t.PlayerSlots)
		}
	}
	return f.Tables, nil
}
