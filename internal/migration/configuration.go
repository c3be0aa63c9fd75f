package migration

import (
	"strings"
	"time"

	"github.com/temirov/shed2git/internal/consolidation"
	"github.com/temirov/shed2git/internal/toolshed"
)

const (
	defaultOwnerConstant               = "devteam"
	defaultTargetDirectoryConstant     = "repo"
	defaultMainBranchConstant          = "master"
	defaultAuthorNameConstant          = "devteam"
	defaultAuthorEmailConstant         = "devteam@galaxyproject.org"
	defaultRequestTimeoutConstant      = 60 * time.Second
	defaultRequestAttemptsConstant     = 3
	defaultRetryDelayConstant          = 2 * time.Second
	configurationKeySeparator          = "."
	shedConfigurationKey               = "shed"
	shedsConfigurationKey              = "sheds"
	ownerConfigurationKey              = "owner"
	targetDirectoryConfigurationKey    = "target_directory"
	scratchParentConfigurationKey      = "scratch_parent"
	importModeConfigurationKey         = "import_mode"
	mainBranchConfigurationKey         = "main_branch"
	authorNameConfigurationKey         = "author_name"
	authorEmailConfigurationKey        = "author_email"
	policyFileConfigurationKey         = "policy_file"
	registryTimeoutConfigurationKey    = "registry.timeout"
	registryAttemptsConfigurationKey   = "registry.attempts"
	registryRetryDelayConfigurationKey = "registry.retry_delay"
)

// RegistryConfiguration tunes Tool Shed requests.
type RegistryConfiguration struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// Configuration captures persisted settings for the list and build commands.
type Configuration struct {
	Shed            string                `mapstructure:"shed"`
	Sheds           map[string]string     `mapstructure:"sheds"`
	Owner           string                `mapstructure:"owner"`
	TargetDirectory string                `mapstructure:"target_directory"`
	ScratchParent   string                `mapstructure:"scratch_parent"`
	ImportMode      string                `mapstructure:"import_mode"`
	MainBranch      string                `mapstructure:"main_branch"`
	AuthorName      string                `mapstructure:"author_name"`
	AuthorEmail     string                `mapstructure:"author_email"`
	PolicyFile      string                `mapstructure:"policy_file"`
	Registry        RegistryConfiguration `mapstructure:"registry"`
}

// DefaultConfiguration returns the baseline settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Shed:            string(toolshed.ShedMain),
		Owner:           defaultOwnerConstant,
		TargetDirectory: defaultTargetDirectoryConstant,
		ImportMode:      string(consolidation.ImportModeHistory),
		MainBranch:      defaultMainBranchConstant,
		AuthorName:      defaultAuthorNameConstant,
		AuthorEmail:     defaultAuthorEmailConstant,
		Registry: RegistryConfiguration{
			Timeout:    defaultRequestTimeoutConstant,
			Attempts:   defaultRequestAttemptsConstant,
			RetryDelay: defaultRetryDelayConstant,
		},
	}
}

// DefaultConfigurationValues exposes the defaults as viper keys rooted at prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	keyPrefix := strings.TrimSpace(prefix)
	if len(keyPrefix) > 0 {
		keyPrefix += configurationKeySeparator
	}

	return map[string]any{
		keyPrefix + shedConfigurationKey:               defaults.Shed,
		keyPrefix + shedsConfigurationKey:              map[string]string{},
		keyPrefix + ownerConfigurationKey:              defaults.Owner,
		keyPrefix + targetDirectoryConfigurationKey:    defaults.TargetDirectory,
		keyPrefix + scratchParentConfigurationKey:      defaults.ScratchParent,
		keyPrefix + importModeConfigurationKey:         defaults.ImportMode,
		keyPrefix + mainBranchConfigurationKey:         defaults.MainBranch,
		keyPrefix + authorNameConfigurationKey:         defaults.AuthorName,
		keyPrefix + authorEmailConfigurationKey:        defaults.AuthorEmail,
		keyPrefix + policyFileConfigurationKey:         defaults.PolicyFile,
		keyPrefix + registryTimeoutConfigurationKey:    defaults.Registry.Timeout.String(),
		keyPrefix + registryAttemptsConfigurationKey:   defaults.Registry.Attempts,
		keyPrefix + registryRetryDelayConfigurationKey: defaults.Registry.RetryDelay.String(),
	}
}

// Sanitize trims string settings and fills blanks with defaults.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.Shed = valueOrDefault(configuration.Shed, defaults.Shed)
	sanitized.Owner = valueOrDefault(configuration.Owner, defaults.Owner)
	sanitized.TargetDirectory = valueOrDefault(configuration.TargetDirectory, defaults.TargetDirectory)
	sanitized.ScratchParent = strings.TrimSpace(configuration.ScratchParent)
	sanitized.ImportMode = valueOrDefault(configuration.ImportMode, defaults.ImportMode)
	sanitized.MainBranch = valueOrDefault(configuration.MainBranch, defaults.MainBranch)
	sanitized.AuthorName = valueOrDefault(configuration.AuthorName, defaults.AuthorName)
	sanitized.AuthorEmail = valueOrDefault(configuration.AuthorEmail, defaults.AuthorEmail)
	sanitized.PolicyFile = strings.TrimSpace(configuration.PolicyFile)

	if sanitized.Registry.Timeout <= 0 {
		sanitized.Registry.Timeout = defaults.Registry.Timeout
	}
	if sanitized.Registry.Attempts <= 0 {
		sanitized.Registry.Attempts = defaults.Registry.Attempts
	}
	if sanitized.Registry.RetryDelay <= 0 {
		sanitized.Registry.RetryDelay = defaults.Registry.RetryDelay
	}

	return sanitized
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
