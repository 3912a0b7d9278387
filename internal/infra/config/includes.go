package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// layer is one config file, in the order it is applied.
type layer struct {
	path string
	data []byte
}

// layerWalker flattens a config file and its includes into layers. Included
// files come before the file that names them, so the including file wins.
// A file reached twice through different includes is applied once.
type layerWalker struct {
	layers []layer
	done   map[string]bool // already in layers
	chain  map[string]bool // on the current include chain
}

// configLayers returns the layers for the file at absPath, ending with the
// file itself.
func configLayers(absPath string, data []byte) ([]layer, error) {
	w := &layerWalker{done: map[string]bool{}, chain: map[string]bool{}}
	if err := w.walk(absPath, data, 0); err != nil {
		return nil, err
	}
	return w.layers, nil
}

func (w *layerWalker) walk(path string, data []byte, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded at %q", maxIncludeDepth, path)
	}

	var head struct {
		Includes []string `yaml:"includes"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}

	w.chain[path] = true
	defer delete(w.chain, path)

	dir := filepath.Dir(path)
	for _, pattern := range head.Includes {
		paths, err := expandInclude(pattern, dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if w.chain[p] {
				return fmt.Errorf("config includes: circular include detected for %q", p)
			}
			if w.done[p] {
				continue
			}
			child, err := readInclude(p)
			if err != nil {
				return err
			}
			if err := w.walk(p, child, depth+1); err != nil {
				return err
			}
		}
	}

	w.done[path] = true
	w.layers = append(w.layers, layer{path: path, data: data})
	return nil
}

// expandInclude resolves pattern against dir into absolute paths. Patterns
// may not reach outside dir. A literal path is returned even when missing so
// the read reports it; a glob matching nothing yields no paths.
func expandInclude(pattern, dir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(dir, pattern); err == nil &&
		(rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	for i, m := range matches {
		if matches[i], err = filepath.Abs(m); err != nil {
			return nil, fmt.Errorf("config includes: abs path %q: %w", m, err)
		}
	}
	return matches, nil
}

func readInclude(path string) ([]byte, error) {
	if err := validatePermissions(path); err != nil {
		return nil, fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config includes: read %q: %w", path, err)
	}
	return data, nil
}

// promptLists is the part of a layer whose lists add up across files.
type promptLists struct {
	Prompt struct {
		AlwaysApprove []string `yaml:"always_approve"`
		AlwaysDeny    []string `yaml:"always_deny"`
	} `yaml:"prompt"`
}

// applyLayers decodes every layer over cfg in order. Scalars and maps take
// the last value set; the prompt allow and deny lists are the union of all
// layers, so an included policy file cannot be dropped by the file that
// includes it.
func applyLayers(cfg *Config, layers []layer) error {
	var approve, deny []string
	for _, l := range layers {
		if len(l.data) == 0 {
			continue
		}
		if err := yaml.Unmarshal(l.data, cfg); err != nil {
			return fmt.Errorf("parse config %q: %w", l.path, err)
		}
		var lists promptLists
		if err := yaml.Unmarshal(l.data, &lists); err != nil {
			return fmt.Errorf("parse config %q: %w", l.path, err)
		}
		approve = appendUnique(approve, lists.Prompt.AlwaysApprove)
		deny = appendUnique(deny, lists.Prompt.AlwaysDeny)
	}
	cfg.Prompt.AlwaysApprove = approve
	cfg.Prompt.AlwaysDeny = deny
	cfg.Includes = nil
	return nil
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
