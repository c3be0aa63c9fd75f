package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
)

const (
	gitInitSubcommandNameConstant         = "init"
	gitCheckoutSubcommandNameConstant     = "checkout"
	gitOrphanFlagConstant                 = "--orphan"
	gitRemoveSubcommandNameConstant       = "rm"
	gitCleanSubcommandNameConstant        = "clean"
	gitPullSubcommandNameConstant         = "pull"
	gitFilterBranchSubcommandNameConstant = "filter-branch"
	gitMergeSubcommandNameConstant        = "merge"
	gitBranchSubcommandNameConstant       = "branch"
	gitForceDeleteFlagConstant            = "-D"
	gitAddSubcommandNameConstant          = "add"
	gitCommitSubcommandNameConstant       = "commit"
	gitMessageFlagConstant                = "-m"
	gitIndexFilterFlagConstant            = "--index-filter"
	mercurialCloneSubcommandNameConstant  = "clone"
)

// stageTemplates holds the start, success, failure, and execution failure templates for one operation.
// Failure templates receive the exit code and standard error suffix after the operation arguments;
// execution failure templates receive the failure description.
type stageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	gitInitTemplates = stageTemplates{
		start:            "Initializing repository in %s",
		success:          "Initialized repository in %s",
		failure:          "Failed to initialize repository in %s (exit code %d%s)",
		executionFailure: "Unable to initialize repository in %s: %s",
	}
	gitOrphanCheckoutTemplates = stageTemplates{
		start:            "Starting orphan branch %s in %s",
		success:          "Started orphan branch %s in %s",
		failure:          "Failed to start orphan branch %s in %s (exit code %d%s)",
		executionFailure: "Unable to start orphan branch %s in %s: %s",
	}
	gitCheckoutTemplates = stageTemplates{
		start:            "Switching to branch %s in %s",
		success:          "Switched to branch %s in %s",
		failure:          "Failed to switch to branch %s in %s (exit code %d%s)",
		executionFailure: "Unable to switch to branch %s in %s: %s",
	}
	gitClearTemplates = stageTemplates{
		start:            "Clearing working tree in %s",
		success:          "Cleared working tree in %s",
		failure:          "Failed to clear working tree in %s (exit code %d%s)",
		executionFailure: "Unable to clear working tree in %s: %s",
	}
	gitPullTemplates = stageTemplates{
		start:            "Pulling history from %s into %s",
		success:          "Pulled history from %s into %s",
		failure:          "Failed to pull history from %s into %s (exit code %d%s)",
		executionFailure: "Unable to pull history from %s into %s: %s",
	}
	gitFilterBranchTemplates = stageTemplates{
		start:            "Rewriting history of %s in %s",
		success:          "Rewrote history of %s in %s",
		failure:          "Failed to rewrite history of %s in %s (exit code %d%s)",
		executionFailure: "Unable to rewrite history of %s in %s: %s",
	}
	gitMergeTemplates = stageTemplates{
		start:            "Merging %s in %s",
		success:          "Merged %s in %s",
		failure:          "Failed to merge %s in %s (exit code %d%s)",
		executionFailure: "Unable to merge %s in %s: %s",
	}
	gitBranchDeletionTemplates = stageTemplates{
		start:            "Removing branch %s in %s",
		success:          "Removed branch %s in %s",
		failure:          "Failed to remove branch %s in %s (exit code %d%s)",
		executionFailure: "Unable to remove branch %s in %s: %s",
	}
	gitAddTemplates = stageTemplates{
		start:            "Staging %s in %s",
		success:          "Staged %s in %s",
		failure:          "Failed to stage %s in %s (exit code %d%s)",
		executionFailure: "Unable to stage %s in %s: %s",
	}
	gitCommitTemplates = stageTemplates{
		start:            "Creating commit %q in %s",
		success:          "Created commit %q in %s",
		failure:          "Failed to create commit %q in %s (exit code %d%s)",
		executionFailure: "Unable to create commit %q in %s: %s",
	}
	mercurialCloneTemplates = stageTemplates{
		start:            "Cloning %s into %s",
		success:          "Cloned %s into %s",
		failure:          "Failed to clone %s into %s (exit code %d%s)",
		executionFailure: "Unable to clone %s into %s: %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandMercurial:
		return formatter.describeMercurialMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	remainingArguments := arguments[1:]

	switch strings.TrimSpace(arguments[0]) {
	case gitInitSubcommandNameConstant:
		return formatter.render(gitInitTemplates, stage, result, failure, workingDirectory)
	case gitCheckoutSubcommandNameConstant:
		if containsArgument(remainingArguments, gitOrphanFlagConstant) {
			orphanBranch := findFlagValue(remainingArguments, gitOrphanFlagConstant)
			return formatter.render(gitOrphanCheckoutTemplates, stage, result, failure, formatter.ensureValue(orphanBranch), workingDirectory)
		}
		branchName := formatter.extractFirstNonFlagArgument(remainingArguments)
		return formatter.render(gitCheckoutTemplates, stage, result, failure, formatter.ensureValue(branchName), workingDirectory)
	case gitRemoveSubcommandNameConstant, gitCleanSubcommandNameConstant:
		return formatter.render(gitClearTemplates, stage, result, failure, workingDirectory)
	case gitPullSubcommandNameConstant:
		source := formatter.extractFirstNonFlagArgument(remainingArguments)
		return formatter.render(gitPullTemplates, stage, result, failure, formatter.ensureValue(source), workingDirectory)
	case gitFilterBranchSubcommandNameConstant:
		branchName := formatter.extractLastNonFlagArgument(remainingArguments, gitIndexFilterFlagConstant)
		return formatter.render(gitFilterBranchTemplates, stage, result, failure, formatter.ensureValue(branchName), workingDirectory)
	case gitMergeSubcommandNameConstant:
		branchName := formatter.extractLastNonFlagArgument(remainingArguments, gitMessageFlagConstant)
		return formatter.render(gitMergeTemplates, stage, result, failure, formatter.ensureValue(branchName), workingDirectory)
	case gitBranchSubcommandNameConstant:
		if containsArgument(remainingArguments, gitForceDeleteFlagConstant) {
			branchName := formatter.extractFirstNonFlagArgument(remainingArguments)
			return formatter.render(gitBranchDeletionTemplates, stage, result, failure, formatter.ensureValue(branchName), workingDirectory)
		}
		return formatter.buildGenericMessage(command, result, failure, stage)
	case gitAddSubcommandNameConstant:
		paths := formatter.collectNonFlagArguments(remainingArguments)
		return formatter.render(gitAddTemplates, stage, result, failure, formatter.ensureValue(strings.Join(paths, commandArgumentsJoinSeparatorConstant)), workingDirectory)
	case gitCommitSubcommandNameConstant:
		commitMessage := findFlagValue(remainingArguments, gitMessageFlagConstant)
		return formatter.render(gitCommitTemplates, stage, result, failure, formatter.ensureValue(commitMessage), workingDirectory)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeMercurialMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 || strings.TrimSpace(arguments[0]) != mercurialCloneSubcommandNameConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	cloneArguments := formatter.collectNonFlagArguments(arguments[1:])
	source := fallbackUnknownValueLabelConstant
	destination := formatter.describeWorkingDirectory(command)
	if len(cloneArguments) > 0 {
		source = cloneArguments[0]
	}
	if len(cloneArguments) > 1 {
		destination = cloneArguments[1]
	}
	return formatter.render(mercurialCloneTemplates, stage, result, failure, source, destination)
}

func (formatter CommandMessageFormatter) render(templates stageTemplates, stage messageStage, result ExecutionResult, failure error, values ...any) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	case messageStageFailure:
		failureValues := append(append([]any{}, values...), result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		return fmt.Sprintf(templates.failure, failureValues...)
	default:
		executionFailureValues := append(append([]any{}, values...), formatter.describeFailure(failure))
		return fmt.Sprintf(templates.executionFailure, executionFailureValues...)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := describeCommand(command)
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return commandLabel
	}
	return commandLabel + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	nonFlagArguments := formatter.collectNonFlagArguments(arguments)
	if len(nonFlagArguments) == 0 {
		return emptyStringConstant
	}
	return nonFlagArguments[0]
}

// extractLastNonFlagArgument returns the final positional argument, skipping the value of valueFlag.
func (formatter CommandMessageFormatter) extractLastNonFlagArgument(arguments []string, valueFlag string) string {
	lastArgument := emptyStringConstant
	for index := 0; index < len(arguments); index++ {
		trimmed := strings.TrimSpace(arguments[index])
		if trimmed == valueFlag {
			index++
			continue
		}
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		lastArgument = trimmed
	}
	return lastArgument
}

func (formatter CommandMessageFormatter) collectNonFlagArguments(arguments []string) []string {
	collected := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		collected = append(collected, trimmed)
	}
	return collected
}

func containsArgument(arguments []string, expected string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == expected {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
