package toolshed

import (
	"fmt"
	"slices"
	"strings"
)

const (
	mainShedNameConstant         = "main"
	devShedNameConstant          = "dev"
	mainShedURLConstant          = "https://toolshed.g2.bx.psu.edu"
	devShedURLConstant           = "https://testtoolshed.g2.bx.psu.edu"
	unknownShedErrorTemplate     = "unknown tool shed %q (known: %s)"
	ambiguousShedErrorTemplate   = "tool shed %q is configured more than once: %s"
	knownShedNamesJoinSeparator  = ", "
	shedURLTrailingSlashConstant = "/"
)

// ShedName identifies a configured Tool Shed instance.
type ShedName string

// Built-in Tool Shed instances.
const (
	ShedMain ShedName = ShedName(mainShedNameConstant)
	ShedDev  ShedName = ShedName(devShedNameConstant)
)

var builtInShedURLs = map[ShedName]string{
	ShedMain: mainShedURLConstant,
	ShedDev:  devShedURLConstant,
}

// UnknownShedError reports a shed name with no configured endpoint.
type UnknownShedError struct {
	Name       string
	KnownNames []string
}

// Error describes the unknown shed.
func (shedError UnknownShedError) Error() string {
	return fmt.Sprintf(unknownShedErrorTemplate, shedError.Name, strings.Join(shedError.KnownNames, knownShedNamesJoinSeparator))
}

// AmbiguousShedError reports several override keys that normalize to the requested shed name.
type AmbiguousShedError struct {
	Name         string
	OverrideKeys []string
}

// Error lists the conflicting override keys.
func (shedError AmbiguousShedError) Error() string {
	return fmt.Sprintf(ambiguousShedErrorTemplate, shedError.Name, strings.Join(shedError.OverrideKeys, knownShedNamesJoinSeparator))
}

// BuiltInShedNames lists the shed names available without configuration, in a stable order.
func BuiltInShedNames() []string {
	return []string{string(ShedMain), string(ShedDev)}
}

// ResolveShedURL returns the base URL for the named shed. Overrides take precedence over built-in endpoints.
// Override keys match case-insensitively, so two keys naming the same shed are rejected.
func ResolveShedURL(name string, overrides map[string]string) (string, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	var matchingKeys []string
	for overrideName, overrideURL := range overrides {
		if strings.ToLower(strings.TrimSpace(overrideName)) != normalizedName {
			continue
		}
		if len(strings.TrimSpace(overrideURL)) > 0 {
			matchingKeys = append(matchingKeys, overrideName)
		}
	}
	slices.Sort(matchingKeys)

	switch len(matchingKeys) {
	case 0:
	case 1:
		return strings.TrimRight(strings.TrimSpace(overrides[matchingKeys[0]]), shedURLTrailingSlashConstant), nil
	default:
		return "", AmbiguousShedError{Name: name, OverrideKeys: matchingKeys}
	}

	if builtInURL, exists := builtInShedURLs[ShedName(normalizedName)]; exists {
		return builtInURL, nil
	}

	knownNames := BuiltInShedNames()
	for overrideName := range overrides {
		trimmedOverrideName := strings.ToLower(strings.TrimSpace(overrideName))
		if !slices.Contains(knownNames, trimmedOverrideName) {
			knownNames = append(knownNames, trimmedOverrideName)
		}
	}
	slices.Sort(knownNames)

	return "", UnknownShedError{Name: name, KnownNames: knownNames}
}
