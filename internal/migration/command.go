package migration

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/shed2git/internal/classification"
	"github.com/temirov/shed2git/internal/consolidation"
	"github.com/temirov/shed2git/internal/execshell"
	"github.com/temirov/shed2git/internal/toolshed"
	"github.com/temirov/shed2git/internal/ui"
	"github.com/temirov/shed2git/internal/utils"
	flagutils "github.com/temirov/shed2git/internal/utils/flags"
	pathutils "github.com/temirov/shed2git/internal/utils/path"
	"github.com/temirov/shed2git/internal/vcs"
)

const (
	listCommandUseConstant               = "list"
	listCommandShortDescriptionConstant  = "List the repositories of a Tool Shed owner"
	listCommandLongDescriptionConstant   = "list prints the name, type, and identifier of every repository the owner has in the selected Tool Shed, in registry order."
	buildCommandUseConstant              = "build"
	buildCommandShortDescriptionConstant = "Consolidate a Tool Shed owner's repositories into one git repository"
	buildCommandLongDescriptionConstant  = "build recreates the target git repository with its category layout and imports every repository of the owner into the directory chosen by the classification policy, preserving Mercurial history."
	shedFlagNameConstant                 = "shed"
	shedFlagDescriptionConstant          = "Tool Shed instance to read from"
	ownerFlagNameConstant                = "owner"
	ownerFlagUsageConstant               = "Repository owner whose repositories are migrated"
	resumeFlagNameConstant               = "resume"
	resumeFlagUsageConstant              = "Skip layout initialization and import into the existing target repository"
	dryRunFlagNameConstant               = "dry-run"
	dryRunFlagUsageConstant              = "Classify repositories and log planned placements without touching the target repository"
	targetFlagNameConstant               = "target"
	targetFlagUsageConstant              = "Directory of the consolidated git repository"
	importModeFlagNameConstant           = "import-mode"
	importModeFlagDescriptionConstant    = "Import full history or a single snapshot commit per repository"
	policyFlagNameConstant               = "policy"
	policyFlagUsageConstant              = "Optional classification policy file replacing the embedded policy"
	shedResolutionErrorTemplateConstant  = "unable to resolve tool shed: %w"
	registryClientErrorTemplateConstant  = "unable to construct tool shed client: %w"
	policyLoadErrorTemplateConstant      = "unable to load classification policy: %w"
	importModeErrorTemplateConstant      = "invalid import mode: %w"
	pathResolutionErrorTemplateConstant  = "unable to resolve %s: %w"
	executorErrorTemplateConstant        = "unable to construct command executor: %w"
	vcsClientErrorTemplateConstant       = "unable to construct version control client: %w"
	buildErrorTemplateConstant           = "build failed: %w"
	targetDirectoryLabelConstant         = "target directory"
	scratchParentLabelConstant           = "scratch parent directory"
	policyFileLabelConstant              = "policy file"
)

// LoggerProvider supplies the logger configured by the root command.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the loaded migration configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the list and build cobra commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	HTTPClient                   toolshed.HTTPClient
	CommandRunner                execshell.CommandRunner
}

// ListCommand constructs the list command.
func (builder *CommandBuilder) ListCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           listCommandUseConstant,
		Short:         listCommandShortDescriptionConstant,
		Long:          listCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runList,
	}
	builder.registerSourceFlags(command)
	return command
}

// BuildCommand constructs the build command.
func (builder *CommandBuilder) BuildCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           buildCommandUseConstant,
		Short:         buildCommandShortDescriptionConstant,
		Long:          buildCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runBuild,
	}
	builder.registerSourceFlags(command)

	defaults := DefaultConfiguration()
	command.Flags().Bool(resumeFlagNameConstant, false, resumeFlagUsageConstant)
	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagUsageConstant)
	command.Flags().String(targetFlagNameConstant, defaults.TargetDirectory, targetFlagUsageConstant)
	command.Flags().String(importModeFlagNameConstant, defaults.ImportMode, flagutils.FormatChoiceUsage(defaults.ImportMode, consolidation.ImportModes(), importModeFlagDescriptionConstant))
	command.Flags().String(policyFlagNameConstant, defaults.PolicyFile, policyFlagUsageConstant)
	return command
}

func (builder *CommandBuilder) registerSourceFlags(command *cobra.Command) {
	defaults := DefaultConfiguration()
	command.Flags().String(shedFlagNameConstant, defaults.Shed, flagutils.FormatChoiceUsage(defaults.Shed, toolshed.BuiltInShedNames(), shedFlagDescriptionConstant))
	command.Flags().String(ownerFlagNameConstant, defaults.Owner, ownerFlagUsageConstant)
}

func (builder *CommandBuilder) runList(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration(command)
	logger := builder.resolveLogger()

	registry, registryError := builder.buildRegistryClient(configuration, logger)
	if registryError != nil {
		return registryError
	}

	service, serviceError := NewService(ServiceDependencies{
		Logger:   logger,
		Registry: registry,
		Output:   command.OutOrStdout(),
	})
	if serviceError != nil {
		return serviceError
	}

	return service.List(command.Context(), configuration.Owner)
}

func (builder *CommandBuilder) runBuild(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration(command)
	logger := builder.resolveLogger()

	resume, _ := command.Flags().GetBool(resumeFlagNameConstant)
	dryRun, _ := command.Flags().GetBool(dryRunFlagNameConstant)

	importMode, importModeError := flagutils.NormalizeChoice(configuration.ImportMode, consolidation.ImportModes())
	if importModeError != nil {
		return fmt.Errorf(importModeErrorTemplateConstant, importModeError)
	}

	registry, registryError := builder.buildRegistryClient(configuration, logger)
	if registryError != nil {
		return registryError
	}

	policy, policyError := builder.buildPolicy(configuration)
	if policyError != nil {
		return policyError
	}

	homeExpander := pathutils.NewHomeExpander()
	targetDirectory, targetError := homeExpander.ExpandAbsolute(configuration.TargetDirectory)
	if targetError != nil {
		return fmt.Errorf(pathResolutionErrorTemplateConstant, targetDirectoryLabelConstant, targetError)
	}
	scratchParent, scratchError := homeExpander.ExpandAbsolute(configuration.ScratchParent)
	if scratchError != nil {
		return fmt.Errorf(pathResolutionErrorTemplateConstant, scratchParentLabelConstant, scratchError)
	}

	versionControl, versionControlError := builder.buildVersionControl(command, configuration, logger)
	if versionControlError != nil {
		return versionControlError
	}

	layoutInitializer, layoutError := consolidation.NewLayoutInitializer(versionControl, logger, targetDirectory, configuration.MainBranch)
	if layoutError != nil {
		return layoutError
	}

	service, serviceError := NewService(ServiceDependencies{
		Logger:            logger,
		Registry:          registry,
		Classifier:        policy,
		LayoutInitializer: layoutInitializer,
		ImporterProvider: func(workspace *consolidation.Workspace) (RepositoryImporter, error) {
			return consolidation.NewImporter(
				consolidation.ImporterConfiguration{
					TargetDirectory: targetDirectory,
					MainBranch:      configuration.MainBranch,
					Mode:            consolidation.ImportMode(importMode),
				},
				consolidation.ImporterDependencies{
					VersionControl:   versionControl,
					CloneURLResolver: registry,
					Workspace:        workspace,
					Logger:           logger,
				},
			)
		},
		Output: command.OutOrStdout(),
	})
	if serviceError != nil {
		return serviceError
	}

	_, buildError := service.Build(command.Context(), BuildOptions{
		Owner:         configuration.Owner,
		ScratchParent: scratchParent,
		Resume:        resume,
		DryRun:        dryRun,
	})
	if buildError != nil {
		return fmt.Errorf(buildErrorTemplateConstant, buildError)
	}
	return nil
}

func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	flagSet := command.Flags()
	if flagSet.Changed(shedFlagNameConstant) {
		configuration.Shed, _ = flagSet.GetString(shedFlagNameConstant)
	}
	if flagSet.Changed(ownerFlagNameConstant) {
		configuration.Owner, _ = flagSet.GetString(ownerFlagNameConstant)
	}
	if flagSet.Lookup(targetFlagNameConstant) != nil && flagSet.Changed(targetFlagNameConstant) {
		configuration.TargetDirectory, _ = flagSet.GetString(targetFlagNameConstant)
	}
	if flagSet.Lookup(importModeFlagNameConstant) != nil && flagSet.Changed(importModeFlagNameConstant) {
		configuration.ImportMode, _ = flagSet.GetString(importModeFlagNameConstant)
	}
	if flagSet.Lookup(policyFlagNameConstant) != nil && flagSet.Changed(policyFlagNameConstant) {
		configuration.PolicyFile, _ = flagSet.GetString(policyFlagNameConstant)
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) humanReadableLogging(command *cobra.Command) bool {
	if builder.HumanReadableLoggingProvider != nil {
		return builder.HumanReadableLoggingProvider()
	}
	logFormat, exists := utils.NewCommandContextAccessor().LogFormat(command.Context())
	return exists && strings.EqualFold(string(logFormat), string(utils.LogFormatConsole))
}

func (builder *CommandBuilder) buildRegistryClient(configuration Configuration, logger *zap.Logger) (*toolshed.Client, error) {
	shedURL, shedError := toolshed.ResolveShedURL(configuration.Shed, configuration.Sheds)
	if shedError != nil {
		return nil, fmt.Errorf(shedResolutionErrorTemplateConstant, shedError)
	}

	client, clientError := toolshed.NewClient(
		toolshed.ClientConfiguration{
			BaseURL:        shedURL,
			RequestTimeout: configuration.Registry.Timeout,
			Attempts:       configuration.Registry.Attempts,
			RetryDelay:     configuration.Registry.RetryDelay,
		},
		toolshed.ClientDependencies{HTTPClient: builder.HTTPClient, Logger: logger},
	)
	if clientError != nil {
		return nil, fmt.Errorf(registryClientErrorTemplateConstant, clientError)
	}
	return client, nil
}

func (builder *CommandBuilder) buildPolicy(configuration Configuration) (*classification.Policy, error) {
	definition := classification.DefaultPolicyDefinition()
	if len(configuration.PolicyFile) > 0 {
		policyPath, pathError := pathutils.NewHomeExpander().ExpandAbsolute(configuration.PolicyFile)
		if pathError != nil {
			return nil, fmt.Errorf(pathResolutionErrorTemplateConstant, policyFileLabelConstant, pathError)
		}
		loadedDefinition, loadError := classification.LoadPolicyDefinition(policyPath)
		if loadError != nil {
			return nil, fmt.Errorf(policyLoadErrorTemplateConstant, loadError)
		}
		definition = loadedDefinition
	}

	policy, policyError := classification.NewPolicy(definition)
	if policyError != nil {
		return nil, fmt.Errorf(policyLoadErrorTemplateConstant, policyError)
	}
	return policy, nil
}

func (builder *CommandBuilder) buildVersionControl(command *cobra.Command, configuration Configuration, logger *zap.Logger) (*vcs.Client, error) {
	runner := builder.CommandRunner
	if runner == nil {
		runner = execshell.NewOSCommandRunner()
	}

	var executorOptions []execshell.ExecutorOption
	if builder.humanReadableLogging(command) {
		executorOptions = append(executorOptions, execshell.WithEventObserver(ui.NewConsoleCommandEventLogger(logger)))
	}

	executor, executorError := execshell.NewShellExecutor(logger, runner, executorOptions...)
	if executorError != nil {
		return nil, fmt.Errorf(executorErrorTemplateConstant, executorError)
	}

	client, clientError := vcs.NewClient(executor, vcs.Identity{Name: configuration.AuthorName, Email: configuration.AuthorEmail})
	if clientError != nil {
		return nil, fmt.Errorf(vcsClientErrorTemplateConstant, clientError)
	}
	return client, nil
}
