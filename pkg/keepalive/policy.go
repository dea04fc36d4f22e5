package keepalive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/keepalive/pkg/match"
)

// PolicyFile is the optional per-application cache policy, read from the
// project directory alongside the engine's own configuration.
const PolicyFile = "keepalive.yaml"

// Policy represents the optional keepalive.yaml configuration.
//
// Include and Exclude accept a single name, a comma-delimited list, or a
// regular expression prefixed with "re:".
type Policy struct {
	Max     int    `yaml:"max,omitempty"`
	Include string `yaml:"include,omitempty"`
	Exclude string `yaml:"exclude,omitempty"`
}

// LoadPolicy reads keepalive.yaml from dir if present. A missing file is not
// an error; it yields the zero policy.
func LoadPolicy(dir string) (*Policy, error) {
	path := filepath.Join(dir, PolicyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", PolicyFile, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", PolicyFile, err)
	}
	return &p, nil
}

// Options resolves the policy into region options.
func (p *Policy) Options() (Options, error) {
	include, err := parsePattern(p.Include)
	if err != nil {
		return Options{}, fmt.Errorf("invalid include pattern: %w", err)
	}
	exclude, err := parsePattern(p.Exclude)
	if err != nil {
		return Options{}, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return Options{Include: include, Exclude: exclude, Max: p.Max}, nil
}

func parsePattern(spec string) (match.Pattern, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return nil, nil
	case strings.HasPrefix(spec, "re:"):
		return match.Compile(strings.TrimPrefix(spec, "re:"))
	case strings.Contains(spec, ","):
		return match.List(spec), nil
	default:
		return match.Exact(spec), nil
	}
}
