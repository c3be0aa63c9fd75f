package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/shed2git/internal/utils"
)

const (
	testEnvironmentPrefixConstant  = "TESTSHEDTOGIT"
	testConfigurationNameConstant  = "config"
	testConfigurationTypeConstant  = "yaml"
	testConfigurationFileConstant  = "config.yaml"
	testEmbeddedContentConstant    = "migration:\n  owner: devteam\n  shed: main\n  registry:\n    timeout: 60s\n"
	testOwnerEnvironmentVariable   = testEnvironmentPrefixConstant + "_MIGRATION_OWNER"
	testShedsEnvironmentVariable   = testEnvironmentPrefixConstant + "_MIGRATION_SHEDS"
	testDefaultMainBranchConstant  = "master"
	testMainBranchDefaultKey       = "migration.main_branch"
	testExcludedDefaultKey         = "migration.excluded"
	testShedsDefaultKey            = "migration.sheds"
	testRegistryTimeoutDefaultKey  = "migration.registry.timeout"
	testDefaultRegistryTimeoutText = "30s"
)

type loaderFixture struct {
	Migration loaderMigrationFixture `mapstructure:"migration"`
}

type loaderMigrationFixture struct {
	Owner      string                `mapstructure:"owner"`
	Shed       string                `mapstructure:"shed"`
	MainBranch string                `mapstructure:"main_branch"`
	Excluded   []string              `mapstructure:"excluded"`
	Sheds      map[string]string     `mapstructure:"sheds"`
	Registry   loaderRegistryFixture `mapstructure:"registry"`
}

type loaderRegistryFixture struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func loaderDefaults() map[string]any {
	return map[string]any{
		testMainBranchDefaultKey:      testDefaultMainBranchConstant,
		testExcludedDefaultKey:        []string{},
		testShedsDefaultKey:           map[string]string{},
		testRegistryTimeoutDefaultKey: testDefaultRegistryTimeoutText,
	}
}

func writeConfigurationFile(testInstance *testing.T, directory string, content string) string {
	testInstance.Helper()
	configurationPath := filepath.Join(directory, testConfigurationFileConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(content), 0o600))
	return configurationPath
}

func TestConfigurationLoaderLayering(testInstance *testing.T) {
	testCases := []struct {
		name               string
		fileContent        string
		ownerEnvironment   string
		expectedOwner      string
		expectedShed       string
		expectedTimeout    time.Duration
		expectConfigSource bool
	}{
		{
			name:            "embedded_over_defaults",
			expectedOwner:   "devteam",
			expectedShed:    "main",
			expectedTimeout: 60 * time.Second,
		},
		{
			name:               "file_over_embedded",
			fileContent:        "migration:\n  owner: iuc\n  registry:\n    timeout: 5s\n",
			expectedOwner:      "iuc",
			expectedShed:       "main",
			expectedTimeout:    5 * time.Second,
			expectConfigSource: true,
		},
		{
			name:               "environment_over_file",
			fileContent:        "migration:\n  owner: iuc\n  shed: dev\n",
			ownerEnvironment:   "bgruening",
			expectedOwner:      "bgruening",
			expectedShed:       "dev",
			expectedTimeout:    60 * time.Second,
			expectConfigSource: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configurationPath := ""
			if len(testCase.fileContent) > 0 {
				configurationPath = writeConfigurationFile(testInstance, testInstance.TempDir(), testCase.fileContent)
			}
			if len(testCase.ownerEnvironment) > 0 {
				testInstance.Setenv(testOwnerEnvironmentVariable, testCase.ownerEnvironment)
			}

			loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})
			loader.SetEmbeddedConfiguration([]byte(testEmbeddedContentConstant), testConfigurationTypeConstant)

			var loaded loaderFixture
			metadata, loadError := loader.LoadConfiguration(configurationPath, loaderDefaults(), &loaded)
			require.NoError(testInstance, loadError)

			require.Equal(testInstance, testCase.expectedOwner, loaded.Migration.Owner)
			require.Equal(testInstance, testCase.expectedShed, loaded.Migration.Shed)
			require.Equal(testInstance, testCase.expectedTimeout, loaded.Migration.Registry.Timeout)
			require.Equal(testInstance, testDefaultMainBranchConstant, loaded.Migration.MainBranch)
			if testCase.expectConfigSource {
				require.Equal(testInstance, configurationPath, metadata.ConfigFileUsed)
			} else {
				require.Empty(testInstance, metadata.ConfigFileUsed)
			}
		})
	}
}

func TestConfigurationLoaderFindsFileInSearchPaths(testInstance *testing.T) {
	emptyDirectory := testInstance.TempDir()
	configurationDirectory := testInstance.TempDir()
	configurationPath := writeConfigurationFile(testInstance, configurationDirectory, "migration:\n  owner: iuc\n")

	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{emptyDirectory, configurationDirectory})

	var loaded loaderFixture
	metadata, loadError := loader.LoadConfiguration("", loaderDefaults(), &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "iuc", loaded.Migration.Owner)
	require.Equal(testInstance, configurationPath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderDecodesStringForms(testInstance *testing.T) {
	configurationPath := writeConfigurationFile(testInstance, testInstance.TempDir(), "migration:\n  excluded: bwa_wrappers,column_maker\n")
	testInstance.Setenv(testShedsEnvironmentVariable, "local=http://localhost:9009, staging=https://staging.example.org")

	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	var loaded loaderFixture
	_, loadError := loader.LoadConfiguration(configurationPath, loaderDefaults(), &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []string{"bwa_wrappers", "column_maker"}, loaded.Migration.Excluded)
	require.Equal(testInstance, 30*time.Second, loaded.Migration.Registry.Timeout)
	require.Equal(testInstance, map[string]string{
		"local":   "http://localhost:9009",
		"staging": "https://staging.example.org",
	}, loaded.Migration.Sheds)
}

func TestConfigurationLoaderRejectsMalformedInput(testInstance *testing.T) {
	testCases := []struct {
		name        string
		fileContent string
		environment string
	}{
		{name: "unparsable_file", fileContent: "migration: [owner"},
		{name: "malformed_map_entry", fileContent: "migration:\n  owner: iuc\n", environment: "local"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configurationPath := writeConfigurationFile(testInstance, testInstance.TempDir(), testCase.fileContent)
			if len(testCase.environment) > 0 {
				testInstance.Setenv(testShedsEnvironmentVariable, testCase.environment)
			}

			loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

			var loaded loaderFixture
			_, loadError := loader.LoadConfiguration(configurationPath, loaderDefaults(), &loaded)
			require.Error(testInstance, loadError)
		})
	}
}
