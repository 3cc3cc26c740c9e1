package env

import (
	"os"

	"github.com/goccy/go-yaml"
)

// ProjectConfig is the optional sdpl.yaml project file (SPEC_FULL.md domain
// stack): static libref bindings and default OPTIONS values, merged into
// the Environment before the driver runs a program.
type ProjectConfig struct {
	Libraries map[string]string `yaml:"libraries"`
	Options   map[string]string `yaml:"options"`
}

// LoadProjectConfig reads and parses an sdpl.yaml file. A missing or
// unreadable file is returned as the os.ReadFile error; `sdpl run` ignores
// any error here and runs without a project config.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply merges cfg's libraries and options into e. Libraries declared in
// the source program's LIBNAME statements still take precedence because
// the driver applies them afterward.
func (e *Environment) Apply(cfg *ProjectConfig) {
	if cfg == nil {
		return
	}
	for libref, path := range cfg.Libraries {
		e.CreateLibrary(libref, path)
	}
	for name, value := range cfg.Options {
		e.SetOption(name, value)
	}
}
