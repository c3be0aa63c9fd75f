package utils

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationReadErrorTemplateConstant   = "failed to read configuration: %w"
	configurationDecodeErrorTemplateConstant = "failed to parse configuration: %w"
	embeddedMergeErrorTemplateConstant       = "failed to merge embedded configuration: %w"
	malformedMapEntryErrorTemplateConstant   = "malformed map entry %q (expected key=value)"
	listValueSeparatorConstant               = ","
	mapEntrySeparatorConstant                = "="
)

var environmentKeyReplacer = strings.NewReplacer(".", "_")

// ConfigurationLoader layers embedded defaults, a configuration file, and prefixed environment variables through viper.
type ConfigurationLoader struct {
	name              string
	format            string
	environmentPrefix string
	searchPaths       []string
	embeddedContent   []byte
	embeddedFormat    string
}

// LoadedConfiguration reports which configuration file, if any, contributed values.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader creates a loader looking for <name>.<format> in searchPaths.
func NewConfigurationLoader(name string, format string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		name:              name,
		format:            format,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string(nil), searchPaths...),
	}
}

// SetEmbeddedConfiguration registers content merged underneath any configuration file.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, format string) {
	if loader == nil {
		return
	}
	loader.embeddedContent = append([]byte(nil), content...)
	loader.embeddedFormat = strings.TrimSpace(format)
}

// LoadConfiguration decodes the layered configuration into target. Precedence, lowest first:
// defaultValues, embedded content, the configuration file, environment variables.
// Strings decode into time.Duration, comma separated []string, and "key=value,..." map[string]string fields.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(environmentKeyReplacer)
	viperInstance.AutomaticEnv()

	// Keys holding empty maps are invisible to AutomaticEnv unless bound explicitly.
	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
		if bindError := viperInstance.BindEnv(defaultKey); bindError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, bindError)
		}
	}

	if len(loader.embeddedContent) > 0 {
		embeddedFormat := loader.embeddedFormat
		if len(embeddedFormat) == 0 {
			embeddedFormat = loader.format
		}
		viperInstance.SetConfigType(embeddedFormat)
		if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedContent)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedMergeErrorTemplateConstant, mergeError)
		}
	}

	viperInstance.SetConfigType(loader.format)
	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	} else {
		viperInstance.SetConfigName(loader.name)
		for _, searchPath := range loader.searchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
	}

	if readError := viperInstance.MergeInConfig(); readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
		stringToStringMapHook,
	))
	if decodeError := viperInstance.Unmarshal(target, decodeHook); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: viperInstance.ConfigFileUsed()}, nil
}

// stringToStringMapHook decodes "name=value,other=value" environment strings into map[string]string fields.
func stringToStringMapHook(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
	if sourceType.Kind() != reflect.String || targetType != reflect.TypeOf(map[string]string{}) {
		return data, nil
	}

	decoded := map[string]string{}
	for _, entry := range strings.Split(data.(string), listValueSeparatorConstant) {
		trimmedEntry := strings.TrimSpace(entry)
		if len(trimmedEntry) == 0 {
			continue
		}
		key, value, found := strings.Cut(trimmedEntry, mapEntrySeparatorConstant)
		if !found || len(strings.TrimSpace(key)) == 0 {
			return nil, fmt.Errorf(malformedMapEntryErrorTemplateConstant, trimmedEntry)
		}
		decoded[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return decoded, nil
}
