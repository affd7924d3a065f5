package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// On-disk shape: {"<x>,<z>": ["<uuid>", ...], ...}. The whole ledger is
// loaded at process start and written back wholesale at process stop; an
// in-flight crash loses mutations since the last save.
const fileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "patternProperties": {
    "^-?[0-9]+,-?[0-9]+$": {
      "type": "array",
      "items": {"type": "string", "format": "uuid"}
    }
  },
  "additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("trustledger.schema.json", fileSchema)

// LoadFile replaces the ledger contents from path. A missing file leaves the
// ledger empty and is not an error; a malformed or schema-invalid file is.
func (l *Ledger) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("trust ledger %s: %w", path, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("trust ledger %s: %w", path, err)
	}
	var byRegion map[string][]string
	if err := json.Unmarshal(raw, &byRegion); err != nil {
		return fmt.Errorf("trust ledger %s: %w", path, err)
	}

	loaded := make(map[RegionKey]map[uuid.UUID]struct{}, len(byRegion))
	for key, ids := range byRegion {
		region, err := parseRegionKey(key)
		if err != nil {
			return fmt.Errorf("trust ledger %s: %w", path, err)
		}
		if len(ids) == 0 {
			continue
		}
		set := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			p, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("trust ledger %s: region %s: %w", path, key, err)
			}
			set[p] = struct{}{}
		}
		loaded[region] = set
	}

	l.mu.Lock()
	l.trusted = loaded
	l.mu.Unlock()
	return nil
}

// SaveFile writes the whole ledger to path via a temp file rename.
func (l *Ledger) SaveFile(path string) error {
	l.mu.RLock()
	byRegion := make(map[string][]string, len(l.trusted))
	for region, set := range l.trusted {
		ids := make([]string, 0, len(set))
		for p := range set {
			ids = append(ids, p.String())
		}
		sort.Strings(ids)
		byRegion[region.String()] = ids
	}
	l.mu.RUnlock()

	raw, err := json.MarshalIndent(byRegion, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func parseRegionKey(s string) (RegionKey, error) {
	var k RegionKey
	if _, err := fmt.Sscanf(s, "%d,%d", &k.X, &k.Z); err != nil {
		return k, fmt.Errorf("bad region key %q", s)
	}
	return k, nil
}
