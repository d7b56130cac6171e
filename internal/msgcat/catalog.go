// Package msgcat holds user-facing strings: embedded Russian defaults plus optional YAML overrides.
package msgcat

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.ru.yaml
var defaultMessages []byte

// Catalog holds parsed templates. It is read-only after New, so it needs no lock.
type Catalog struct {
	tpls map[Key]*template.Template
}

// New loads the embedded messages, then every *.yaml / *.yml file in overrideDir
// in name order. Overrides may only replace keys the embedded file defines,
// and two override files may not set the same key.
func New(overrideDir string) (*Catalog, error) {
	base, err := decodeLayer("messages.ru.yaml", defaultMessages)
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		if err := overlayDir(base, dir); err != nil {
			return nil, err
		}
	}

	c := &Catalog{tpls: make(map[Key]*template.Template, len(base))}
	for k, src := range base {
		t, err := template.New(string(k)).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", k, err)
		}
		c.tpls[k] = t
	}
	for _, k := range required {
		if _, ok := c.tpls[k]; !ok {
			return nil, fmt.Errorf("message %s is missing", k)
		}
	}
	return c, nil
}

// MustDefault returns the embedded catalog; it panics only if the binary was built with a broken file.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

func overlayDir(base map[Key]string, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read messages dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)

	owner := make(map[Key]string)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		layer, err := decodeLayer(name, raw)
		if err != nil {
			return err
		}
		for k, v := range layer {
			if _, ok := base[k]; !ok {
				return fmt.Errorf("%s: unknown message %s", name, k)
			}
			if prev, ok := owner[k]; ok {
				return fmt.Errorf("message %s set by both %s and %s", k, prev, name)
			}
			owner[k] = name
			base[k] = v
		}
	}
	return nil
}

// decodeLayer walks the YAML tree so errors can point at the offending line.
func decodeLayer(name string, raw []byte) (map[Key]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	out := make(map[Key]string)
	if len(doc.Content) == 0 {
		return out, nil
	}
	if err := walk(name, doc.Content[0], "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(name string, n *yaml.Node, path string, out map[Key]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			if path != "" {
				k = path + "." + k
			}
			if err := walk(name, n.Content[i+1], k, out); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		if n.Tag != "!!str" || path == "" {
			return fmt.Errorf("%s:%d: %s must be a string, got %s", name, n.Line, path, n.Tag)
		}
		out[Key(path)] = n.Value
		return nil
	default:
		return fmt.Errorf("%s:%d: %s: unexpected YAML node", name, n.Line, path)
	}
}

// Render executes the template for key. Fields missing from data are errors.
func (c *Catalog) Render(key Key, data any) (string, error) {
	t, ok := c.tpls[key]
	if !ok {
		return "", fmt.Errorf("unknown message %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text is Render for display paths: on failure it returns the key itself.
func (c *Catalog) Text(key Key, data any) string {
	if c == nil {
		return string(key)
	}
	s, err := c.Render(key, data)
	if err != nil {
		return string(key)
	}
	return s
}
