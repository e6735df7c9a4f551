// Package config loads dispatcher settings and named combo bindings from
// TOML or YAML files, and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// Duration is a time.Duration written as a Go duration string ("750ms").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML accepts the same duration strings as the TOML form.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Binding names an action triggered by a combo.
type Binding struct {
	Combo       string `toml:"combo" yaml:"combo"`
	Action      string `toml:"action" yaml:"action"`
	Description string `toml:"description,omitempty" yaml:"description,omitempty"`
}

// File is the on-disk configuration.
type File struct {
	// SequenceTimeout overrides input.DefaultSequenceTimeout when non-zero.
	SequenceTimeout Duration `toml:"sequence_timeout,omitempty" yaml:"sequence_timeout,omitempty"`

	// SelfReleasingKeys lists keys whose release events the environment drops.
	SelfReleasingKeys []string `toml:"self_releasing_keys,omitempty" yaml:"self_releasing_keys,omitempty"`

	// KeyRemap substitutes key identifiers before matching.
	KeyRemap map[string]string `toml:"key_remap,omitempty" yaml:"key_remap,omitempty"`

	// Bindings are the combos and the actions they trigger.
	Bindings []Binding `toml:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// Load reads and validates the file at path. The format is chosen by
// extension.
func Load(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return parse(path, data, format)
}

// Parse decodes and validates data in the given format.
func Parse(data []byte, format Format) (*File, error) {
	return parse("<input>", data, format)
}

func parse(source string, data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, tomlParseError(source, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, yamlParseError(source, err)
		}
	default:
		return nil, fmt.Errorf("%s: format %q: %w", source, format, ErrUnsupportedFormat)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func tomlParseError(source string, err error) error {
	pe := &ParseError{Path: source, Message: err.Error(), Err: err}
	var de *toml.DecodeError
	if errors.As(err, &de) {
		pe.Line, pe.Column = de.Position()
	}
	return pe
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func yamlParseError(source string, err error) error {
	pe := &ParseError{Path: source, Message: err.Error(), Err: err}
	if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}

// Validate checks every binding combo and the timeout.
func (f *File) Validate() error {
	var errs []error
	if f.SequenceTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field: "sequence_timeout",
			Value: time.Duration(f.SequenceTimeout).String(),
			Err:   errors.New("must not be negative"),
		})
	}
	for i, b := range f.Bindings {
		if b.Action == "" {
			errs = append(errs, &ValidationError{
				Field: fmt.Sprintf("bindings[%d].action", i),
				Value: b.Action,
				Err:   errors.New("must not be empty"),
			})
		}
		if _, err := combo.Parse(b.Combo); err != nil {
			errs = append(errs, &ValidationError{
				Field: fmt.Sprintf("bindings[%d].combo", i),
				Value: b.Combo,
				Err:   err,
			})
		}
	}
	return errors.Join(errs...)
}

// Apply returns opts with the file's dispatcher settings layered on top.
// Fields the file leaves empty keep their value from opts.
func (f *File) Apply(opts input.Options) input.Options {
	if f.SequenceTimeout > 0 {
		opts.SequenceTimeout = time.Duration(f.SequenceTimeout)
	}
	if len(f.SelfReleasingKeys) > 0 {
		opts.SelfReleasingKeys = append([]string(nil), f.SelfReleasingKeys...)
	}
	if len(f.KeyRemap) > 0 {
		remap := make(map[string]string, len(opts.KeyRemap)+len(f.KeyRemap))
		for from, to := range opts.KeyRemap {
			remap[from] = to
		}
		for from, to := range f.KeyRemap {
			remap[strings.ToLower(from)] = strings.ToLower(to)
		}
		opts.KeyRemap = remap
	}
	return opts
}

// Encode writes f in the given format.
func (f *File) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(f)
	case FormatYAML:
		return yaml.Marshal(f)
	default:
		return nil, fmt.Errorf("format %q: %w", format, ErrUnsupportedFormat)
	}
}
