package transform

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/mediajoin/errors"
)

// maxPresetSize bounds a preset file
const maxPresetSize = 1 << 20

// Preset binds a built-in transform to fixed params under a new name. Presets
// live in plugin directories, one per file; the file stem is the name.
//
//	# fill-dark.yaml
//	transform: fill
//	description: top-left quadrant blacked out
//	params: {value: 0}
type Preset struct {
	Name        string          `json:"-"`
	Base        string          `json:"transform"`
	Description string          `json:"description,omitempty"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// LoadPresets registers every preset found in dirs, searched in order. Files
// ending in .json, .yaml or .yml are read; other entries are ignored. A preset
// whose name is already registered, including by an earlier directory, is an
// error. It returns the registered names.
func (r *Registry) LoadPresets(dirs []string) ([]string, error) {
	var loaded []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return loaded, errors.WrapInvalid(err, "Registry", "LoadPresets", fmt.Sprintf("read %s", dir))
		}
		// ReadDir returns entries sorted by name
		for _, entry := range entries {
			if entry.IsDir() || !isPresetFile(entry.Name()) {
				continue
			}
			preset, err := ReadPreset(filepath.Join(dir, entry.Name()))
			if err != nil {
				return loaded, err
			}
			if err := r.RegisterPreset(preset); err != nil {
				return loaded, err
			}
			loaded = append(loaded, preset.Name)
		}
	}
	return loaded, nil
}

// ReadPreset decodes one preset file
func ReadPreset(path string) (Preset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Preset{}, errors.WrapInvalid(err, "transform", "ReadPreset", "stat")
	}
	if info.Size() > maxPresetSize {
		return Preset{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s is %d bytes", errors.ErrInvalidConfig, path, info.Size()),
			"transform", "ReadPreset", "size check")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, errors.WrapInvalid(err, "transform", "ReadPreset", "read")
	}

	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Preset{}, errors.WrapInvalid(
				fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err), "transform", "ReadPreset", "yaml decode")
		}
		if data, err = json.Marshal(doc); err != nil {
			return Preset{}, errors.WrapInvalid(
				fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err), "transform", "ReadPreset", "yaml convert")
		}
	}

	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return Preset{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err), "transform", "ReadPreset", "decode")
	}
	p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p, nil
}

// RegisterPreset registers p under its name. Params passed to Create are merged
// over the preset's own, key by key.
func (r *Registry) RegisterPreset(p Preset) error {
	if p.Base == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: preset %q names no transform", errors.ErrInvalidConfig, p.Name),
			"Registry", "RegisterPreset", "base check")
	}

	r.mu.RLock()
	base, ok := r.factories[p.Base]
	r.mu.RUnlock()
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: preset %q uses unknown transform %q", errors.ErrInvalidConfig, p.Name, p.Base),
			"Registry", "RegisterPreset", "base lookup")
	}

	desc := p.Description
	if desc == "" {
		desc = fmt.Sprintf("%s preset", p.Base)
	}
	fixed := p.Params
	return r.RegisterFactory(&Registration{
		Name:        p.Name,
		Description: desc,
		Factory: func(params json.RawMessage, logger *slog.Logger) (Built, error) {
			merged, err := mergeParams(fixed, params)
			if err != nil {
				return Built{}, err
			}
			return base.Factory(merged, logger)
		},
	})
}

// mergeParams overlays override's top-level keys on base
func mergeParams(base, override json.RawMessage) (json.RawMessage, error) {
	if isEmptyParams(override) {
		return base, nil
	}
	if isEmptyParams(base) {
		return override, nil
	}

	var b, o map[string]json.RawMessage
	if err := decodeParams(base, &b); err != nil {
		return nil, err
	}
	if err := decodeParams(override, &o); err != nil {
		return nil, err
	}
	for k, v := range o {
		b[k] = v
	}
	out, err := json.Marshal(b)
	if err != nil {
		return nil, errors.WrapInvalid(err, "transform", "mergeParams", "encode")
	}
	return out, nil
}

func isEmptyParams(p json.RawMessage) bool {
	return len(p) == 0 || string(p) == "null"
}

func isPresetFile(name string) bool {
	switch filepath.Ext(name) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
