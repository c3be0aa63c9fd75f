package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const homeShortcutConstant = "~"

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// EnvironmentLookup resolves an environment variable.
type EnvironmentLookup func(name string) (string, bool)

// HomeExpander resolves "~" shortcuts and $VARIABLE references in user supplied paths.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	environmentLookup     EnvironmentLookup
	homeOnce              sync.Once
	homeDirectory         string
}

// NewHomeExpander constructs a HomeExpander backed by the operating system.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom home directory provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider, environmentLookup: os.LookupEnv}
}

// WithEnvironmentLookup replaces the environment variable source.
func (expander *HomeExpander) WithEnvironmentLookup(lookup EnvironmentLookup) *HomeExpander {
	if lookup != nil {
		expander.environmentLookup = lookup
	}
	return expander
}

// ExpandAbsolute expands the path and converts it to a cleaned absolute path. Blank input yields an empty result.
func (expander *HomeExpander) ExpandAbsolute(candidatePath string) (string, error) {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return "", nil
	}
	return filepath.Abs(expander.Expand(trimmedPath))
}

// Expand substitutes environment references and a leading home shortcut. Unresolvable parts are kept verbatim.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || len(candidatePath) == 0 {
		return candidatePath
	}

	expandedPath := os.Expand(candidatePath, func(variableName string) string {
		if value, found := expander.environmentLookup(variableName); found {
			return value
		}
		return "$" + variableName
	})

	remainder, hasShortcut := strings.CutPrefix(expandedPath, homeShortcutConstant)
	if !hasShortcut || (len(remainder) > 0 && remainder[0] != '/' && remainder[0] != os.PathSeparator) {
		return expandedPath
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return expandedPath
	}
	return filepath.Join(homeDirectory, remainder)
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.homeOnce.Do(func() {
		if homeDirectory, homeError := expander.homeDirectoryProvider(); homeError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}
