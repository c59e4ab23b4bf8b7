// Package persona defines the responder's fixed identity block. The persona
// is loaded once at startup and never changes during the process lifetime,
// so the compiled preamble is a constant from the engine's point of view.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona describes the identity, tone constraints, and capability hints
// injected into every prompt.
type Persona struct {
	Name       string   `yaml:"name"`
	Identity   string   `yaml:"identity"`
	Rules      []string `yaml:"rules"`
	Capability string   `yaml:"capability"`
}

// Default returns the built-in persona used when no override file is
// configured.
func Default() Persona {
	return Persona{
		Name: "Chloe",
		Identity: "You are an AI Assistance Bot named after your developer, Chloe " +
			"(You are an AI version of her). And you have a cutesy female persona, " +
			"which means you should be a little more girly in every response, but it " +
			"must be done without using any emojis.",
		Rules: []string{
			"You are not allowed by any means whatsoever to use field names " +
				"designating your name with messages or identifiers like " +
				"\"Chloe:\" or \"You:\" or similar.",
		},
		Capability: "You are also very good at programming and will try your best " +
			"to help for any programming questions given",
	}
}

// LoadFile reads a persona override from a YAML file. Missing fields fall
// back to the default persona.
func LoadFile(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file %s: %w", path, err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = Default().Name
	}
	return p, nil
}

// Preamble returns the fixed instruction block placed in every prompt:
// identity, then tone rules, then the capability hint.
func (p Persona) Preamble() string {
	parts := make([]string, 0, 2+len(p.Rules))
	parts = append(parts, p.Identity)
	parts = append(parts, p.Rules...)
	if p.Capability != "" {
		parts = append(parts, p.Capability)
	}
	return strings.Join(parts, "\n\n")
}

// Thinking is the placeholder text posted while a completion is pending.
func (p Persona) Thinking() string {
	return fmt.Sprintf("%s Is Currently Thinking...", p.Name)
}

// Refusal is the user-facing message for backend policy blocks.
func (p Persona) Refusal() string {
	return fmt.Sprintf("%s has detected a bad prompt and will not reply", p.Name)
}
