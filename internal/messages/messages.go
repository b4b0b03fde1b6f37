// Package messages holds the fixed user-facing strings shown in the
// placeholder region, keyed by kind.
package messages

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind identifies a user-facing message.
type Kind string

const (
	Placeholder Kind = "placeholder"
	Validation  Kind = "validation"
	Generation  Kind = "generation"
)

// Catalog maps message kinds to display strings.
type Catalog struct {
	Placeholder string `yaml:"placeholder" json:"placeholder"`
	Validation  string `yaml:"validation" json:"validation"`
	Generation  string `yaml:"generation" json:"generation"`
}

// Default returns the built-in pt-BR catalog.
func Default() *Catalog {
	return &Catalog{
		Placeholder: "Sua estampa aparecerá aqui.",
		Validation:  "Por favor, insira uma descrição para a estampa.",
		Generation:  "Ocorreu um erro ao gerar a imagem. Tente novamente mais tarde.",
	}
}

// LoadFile returns the default catalog with any keys present in the YAML file
// at path applied on top. An empty path returns the defaults.
func LoadFile(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	var override Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&override); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}

	if override.Placeholder != "" {
		c.Placeholder = override.Placeholder
	}
	if override.Validation != "" {
		c.Validation = override.Validation
	}
	if override.Generation != "" {
		c.Generation = override.Generation
	}
	return c, nil
}

// Get returns the string for k, or "" for an unknown kind.
func (c *Catalog) Get(k Kind) string {
	switch k {
	case Placeholder:
		return c.Placeholder
	case Validation:
		return c.Validation
	case Generation:
		return c.Generation
	}
	return ""
}
