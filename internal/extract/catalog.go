package extract

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Field describes one lab value requested from the model.
type Field struct {
	Key          string             `yaml:"key"`
	Name         string             `yaml:"name"`
	Unit         string             `yaml:"unit"`
	PlausibleLow float64            `yaml:"plausible_low"`
	FlagKey      string             `yaml:"flag_key"`
	Magnitudes   map[string]float64 `yaml:"magnitudes"`
}

// PatientKeys names the demographic properties in the model response.
type PatientKeys struct {
	Name   string `yaml:"name"`
	Age    string `yaml:"age"`
	Gender string `yaml:"gender"`
}

// Catalog is the set of fields the extractor understands.
type Catalog struct {
	Fields  []Field     `yaml:"fields"`
	Patient PatientKeys `yaml:"patient"`
}

// DefaultCatalog parses the embedded CBC catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return &c, nil
}

// Field returns the field with the given canonical name.
func (c *Catalog) Field(name string) (Field, bool) {
	i := slices.IndexFunc(c.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return c.Fields[i], true
}

func (c *Catalog) validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("no fields")
	}

	keys := make(map[string]bool)
	names := make(map[string]bool)
	for _, f := range c.Fields {
		if f.Key == "" || f.Name == "" {
			return fmt.Errorf("field requires key and name: %+v", f)
		}
		if keys[f.Key] || names[f.Name] {
			return fmt.Errorf("duplicate field %s", f.Key)
		}
		keys[f.Key] = true
		names[f.Name] = true

		for phrase, m := range f.Magnitudes {
			if m <= 0 {
				return fmt.Errorf("%s: magnitude %q must be positive", f.Key, phrase)
			}
			if phrase != strings.ToLower(phrase) {
				return fmt.Errorf("%s: magnitude %q must be lower case", f.Key, phrase)
			}
		}
		if f.PlausibleLow > 0 && f.FlagKey == "" {
			return fmt.Errorf("%s: plausible_low requires flag_key", f.Key)
		}
	}

	if c.Patient.Name == "" || c.Patient.Age == "" || c.Patient.Gender == "" {
		return fmt.Errorf("patient keys required")
	}
	return nil
}
