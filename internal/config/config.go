// Package config loads histogram declarations from YAML and applies them to
// a manager.
//
// A declaration file names the manager, lists the variable universe in
// index order and declares classes of histograms whose axes refer to
// variables by name:
//
//	name: analysis
//	variables:
//	  - {name: pt, unit: GeV/c}
//	  - {name: eta}
//	classes:
//	  - name: Track
//	    histograms:
//	      - name: pt
//	        title: "p_{T} spectrum"
//	        x: {var: pt, bins: 50, min: 0, max: 25}
//	      - name: eta_vs_pt
//	        profile: true
//	        x: {var: pt, edges: [0, 1, 2, 5, 10, 25]}
//	        y: {var: eta}
//	      - name: pt_eta_nd
//	        axes:
//	          - {var: pt, bins: 10, min: 0, max: 25}
//	          - {var: eta, bins: 8, min: -0.8, max: 0.8}
//
// A histogram sets either x (with optional y, z and t) or axes, never both;
// axes declares an N-dimensional histogram.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"hmgr.lopezb.com/internal/histo"
)

// EnvName overrides the manager name from the file.
const EnvName = "HISTO_NAME"

// DefaultName is used when neither the file nor the environment names the
// manager.
const DefaultName = "histograms"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid declarations")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is a declaration file.
type Config struct {
	Name      string     `yaml:"name" validate:"required"`
	Variables []Variable `yaml:"variables" validate:"required,min=1,dive"`
	Classes   []Class    `yaml:"classes" validate:"dive"`
}

// Variable is one entry of the variable universe. Its position in the list
// is its index.
type Variable struct {
	Name string `yaml:"name" validate:"required,excludesall=;"`
	Unit string `yaml:"unit"`
}

// Class declares a histogram class.
type Class struct {
	Name       string      `yaml:"name" validate:"required"`
	Histograms []Histogram `yaml:"histograms" validate:"dive"`
}

// Histogram declares one histogram or profile. Variable references are by
// name; T and Weight are optional.
type Histogram struct {
	Name    string `yaml:"name" validate:"required"`
	Title   string `yaml:"title"`
	Profile bool   `yaml:"profile"`
	X       *Axis  `yaml:"x"`
	Y       *Axis  `yaml:"y"`
	Z       *Axis  `yaml:"z"`
	T       string `yaml:"t"`
	Weight  string `yaml:"weight"`
	Axes    []Axis `yaml:"axes" validate:"omitempty,max=20,dive"`
}

// Axis declares the binning of one axis: either bins over [min, max) or
// explicit edges. The averaged axis of a profile only needs var.
type Axis struct {
	Var    string    `yaml:"var" validate:"required"`
	Bins   int       `yaml:"bins" validate:"gte=0"`
	Min    float64   `yaml:"min"`
	Max    float64   `yaml:"max"`
	Edges  []float64 `yaml:"edges" validate:"omitempty,min=2"`
	Labels string    `yaml:"labels"`
}

// Default returns an empty configuration with the default name.
func Default() Config {
	return Config{Name: DefaultName}
}

// Load reads path with priority: environment > file > defaults, then
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read declarations: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	loadFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvName); v != "" {
		cfg.Name = v
	}
}

// Validate checks the struct tags, then the cross-field rules the tags
// cannot express: unique variable and class names, resolvable variable
// references and the x/axes exclusivity.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	vars := make(map[string]bool, len(c.Variables))
	for _, v := range c.Variables {
		if vars[v.Name] {
			return fmt.Errorf("%w: variable %q declared twice", ErrInvalid, v.Name)
		}
		vars[v.Name] = true
	}

	classes := make(map[string]bool, len(c.Classes))
	for _, cl := range c.Classes {
		if classes[cl.Name] {
			return fmt.Errorf("%w: class %q declared twice", ErrInvalid, cl.Name)
		}
		classes[cl.Name] = true

		for _, h := range cl.Histograms {
			if err := h.check(vars); err != nil {
				return fmt.Errorf("%w: %s/%s: %w", ErrInvalid, cl.Name, h.Name, err)
			}
		}
	}
	return nil
}

func (h *Histogram) check(vars map[string]bool) error {
	switch {
	case h.X == nil && len(h.Axes) == 0:
		return errors.New("needs x or axes")
	case h.X != nil && len(h.Axes) > 0:
		return errors.New("x and axes are exclusive")
	case len(h.Axes) > 0 && (h.Y != nil || h.Z != nil || h.T != "" || h.Profile):
		return errors.New("axes cannot be combined with y, z, t or profile")
	}

	refs := []string{h.T, h.Weight}
	for _, a := range []*Axis{h.X, h.Y, h.Z} {
		if a != nil {
			refs = append(refs, a.Var)
		}
	}
	for _, a := range h.Axes {
		refs = append(refs, a.Var)
	}
	for _, name := range refs {
		if name != "" && !vars[name] {
			return fmt.Errorf("unknown variable %q", name)
		}
	}
	return nil
}

// varIndex maps a variable name to its index, "" to NoVariable.
func (c *Config) varIndex(name string) int {
	if name == "" {
		return histo.NoVariable
	}
	for i, v := range c.Variables {
		if v.Name == name {
			return i
		}
	}
	return histo.NoVariable
}
