package qualification

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy/default.yaml
var defaultPolicy []byte

// Policy is the qualification policy document: persona, rubric and output
// contract plus the generation settings it was tuned with.
type Policy struct {
	Name         string  `yaml:"name"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"maxTokens"`
	SystemPrompt string  `yaml:"systemPrompt"`
}

// DefaultPolicy returns the embedded policy.
func DefaultPolicy() Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded qualification policy is invalid: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file, or returns the embedded one for an empty path.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read qualification policy: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse qualification policy: %w", err)
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	switch {
	case p.SystemPrompt == "":
		return Policy{}, fmt.Errorf("qualification policy %q has no systemPrompt", p.Name)
	case p.Temperature < 0 || p.Temperature > 2:
		return Policy{}, fmt.Errorf("qualification policy temperature %.2f out of range", p.Temperature)
	case p.MaxTokens <= 0:
		return Policy{}, fmt.Errorf("qualification policy maxTokens must be positive")
	}
	return p, nil
}
