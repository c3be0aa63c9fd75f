package classification

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	policyPathRequiredMessageConstant = "classification policy path must be provided"
	policyReadErrorTemplateConstant   = "failed to read classification policy %s: %w"
	policyParseErrorTemplateConstant  = "failed to parse classification policy: %w"
	defaultPolicyParseFailureConstant = "embedded classification policy is invalid: %v"
)

//go:embed default_policy.yaml
var embeddedDefaultPolicyContent []byte

// PolicyDefinition is the declarative form of a classification policy.
type PolicyDefinition struct {
	Collections  map[string][]string `yaml:"collections" json:"collections"`
	Excluded     []string            `yaml:"excluded" json:"excluded"`
	LegacySuites []string            `yaml:"legacy_suites" json:"legacy_suites"`
}

// ParsePolicyDefinition decodes a YAML policy definition.
func ParsePolicyDefinition(content []byte) (PolicyDefinition, error) {
	var definition PolicyDefinition
	if unmarshalError := yaml.Unmarshal(content, &definition); unmarshalError != nil {
		return PolicyDefinition{}, fmt.Errorf(policyParseErrorTemplateConstant, unmarshalError)
	}
	return definition, nil
}

// LoadPolicyDefinition reads and decodes a policy definition file.
func LoadPolicyDefinition(filePath string) (PolicyDefinition, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return PolicyDefinition{}, errors.New(policyPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return PolicyDefinition{}, fmt.Errorf(policyReadErrorTemplateConstant, trimmedPath, readError)
	}

	return ParsePolicyDefinition(contentBytes)
}

// DefaultPolicyDefinition returns the policy definition compiled into the binary.
func DefaultPolicyDefinition() PolicyDefinition {
	definition, parseError := ParsePolicyDefinition(embeddedDefaultPolicyContent)
	if parseError != nil {
		panic(fmt.Sprintf(defaultPolicyParseFailureConstant, parseError))
	}
	return definition
}

// DefaultPolicy builds the policy compiled into the binary.
func DefaultPolicy() (*Policy, error) {
	return NewPolicy(DefaultPolicyDefinition())
}
