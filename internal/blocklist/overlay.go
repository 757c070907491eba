package blocklist

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overlay is a YAML file of operator-curated additions to the built-in
// blocklist. The format:
//
//	blocklist:
//	  hosts:
//	    - resellerhub.example
//	  patterns:
//	    - '\.bigcartel\.com$'
type Overlay struct {
	Hosts    []string `yaml:"hosts"`
	Patterns []string `yaml:"patterns"`
}

// LoadOverlay reads an overlay file.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "blocklist: read overlay %s", path)
	}

	var wrapper struct {
		Blocklist Overlay `yaml:"blocklist"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "blocklist: parse overlay %s", path)
	}

	return &wrapper.Blocklist, nil
}

// FromOverlay returns the default blocklist extended with the overlay
// at path. An empty path returns the defaults unchanged.
func FromOverlay(path string) (*Blocklist, error) {
	if path == "" {
		return Default(), nil
	}
	o, err := LoadOverlay(path)
	if err != nil {
		return nil, err
	}
	return Default().Extend(o.Hosts, o.Patterns)
}
