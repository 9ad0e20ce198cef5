// Package prompt holds the system instructions sent to the classifier model.
package prompt

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Default is the template used when none is configured.
const Default = "penal"

// Template is a named system instruction and, optionally, a structured
// output schema for providers that support one.
type Template struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	System         string         `yaml:"system"`
	ResponseSchema map[string]any `yaml:"response_schema"`
}

// Get returns the built-in template with the given name.
func Get(name string) (Template, error) {
	if name == "" {
		name = Default
	}
	t, ok := builtins()[name]
	if !ok {
		return Template{}, eris.Errorf("prompt: unknown template %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// Names lists the built-in template names in sorted order.
func Names() []string {
	b := builtins()
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads a template from a YAML file.
func Load(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, eris.Wrapf(err, "prompt: read %s", path)
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, eris.Wrapf(err, "prompt: parse %s", path)
	}
	if strings.TrimSpace(t.System) == "" {
		return Template{}, eris.Errorf("prompt: %s has an empty system instruction", path)
	}
	if t.Name == "" {
		t.Name = path
	}
	return t, nil
}

// Resolve picks the template from a file when one is given, otherwise the
// named built-in.
func Resolve(name, file string) (Template, error) {
	if file != "" {
		return Load(file)
	}
	return Get(name)
}
