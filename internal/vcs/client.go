package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/shed2git/internal/execshell"
)

const (
	gitInitSubcommandConstant           = "init"
	gitInitialBranchFlagConstant        = "--initial-branch"
	gitCheckoutSubcommandConstant       = "checkout"
	gitOrphanFlagConstant               = "--orphan"
	gitRemoveSubcommandConstant         = "rm"
	gitRecursiveFlagConstant            = "-r"
	gitForceFlagConstant                = "-f"
	gitQuietFlagConstant                = "-q"
	gitIgnoreUnmatchFlagConstant        = "--ignore-unmatch"
	gitCurrentDirectoryConstant         = "."
	gitCleanSubcommandConstant          = "clean"
	gitDirectoriesFlagConstant          = "-d"
	gitIgnoredFilesFlagConstant         = "-x"
	gitPullSubcommandConstant           = "pull"
	gitMercurialRemotePrefixConstant    = "hg::"
	gitFilterBranchSubcommandConstant   = "filter-branch"
	gitIndexFilterFlagConstant          = "--index-filter"
	gitMergeSubcommandConstant          = "merge"
	gitAllowUnrelatedFlagConstant       = "--allow-unrelated-histories"
	gitNoFastForwardFlagConstant        = "--no-ff"
	gitMessageFlagConstant              = "-m"
	gitBranchSubcommandConstant         = "branch"
	gitForceDeleteFlagConstant          = "-D"
	gitUpdateRefSubcommandConstant      = "update-ref"
	gitDeleteFlagConstant               = "-d"
	filterBranchBackupRefPrefixConstant = "refs/original/refs/heads/"
	gitAddSubcommandConstant            = "add"
	gitAllFlagConstant                  = "-A"
	gitPathSeparatorFlagConstant        = "--"
	gitCommitSubcommandConstant         = "commit"
	gitAuthorFlagConstant               = "--author"
	mercurialCloneSubcommandConstant    = "clone"
	authorIdentityTemplateConstant      = "%s <%s>"
	gitAuthorNameVariableConstant       = "GIT_AUTHOR_NAME"
	gitAuthorEmailVariableConstant      = "GIT_AUTHOR_EMAIL"
	gitCommitterNameVariableConstant    = "GIT_COMMITTER_NAME"
	gitCommitterEmailVariableConstant   = "GIT_COMMITTER_EMAIL"
	filterBranchSquelchVariableConstant = "FILTER_BRANCH_SQUELCH_WARNING"
	filterBranchSquelchValueConstant    = "1"
	executorNotConfiguredMessage        = "vcs executor not configured"
	requiredValueMessageConstant        = "value required"
	invalidInputErrorTemplateConstant   = "%s: %s"
	operationErrorTemplateConstant      = "%s failed: %v"
	repositoryPathFieldNameConstant     = "repository_path"
	branchNameFieldNameConstant         = "branch_name"
	sourceFieldNameConstant             = "source"
	destinationFieldNameConstant        = "destination"
	messageFieldNameConstant            = "message"
	pathFieldNameConstant               = "path"
)

// Operation names reported in OperationError.
const (
	OperationInitializeRepository = OperationName("InitializeRepository")
	OperationStage                = OperationName("Stage")
	OperationCommit               = OperationName("Commit")
	OperationCreateOrphanBranch   = OperationName("CreateOrphanBranch")
	OperationCloneHistory         = OperationName("CloneHistory")
	OperationPullHistory          = OperationName("PullHistory")
	OperationRelocateHistory      = OperationName("RelocateHistory")
	OperationCheckoutBranch       = OperationName("CheckoutBranch")
	OperationMergeBranch          = OperationName("MergeBranch")
	OperationDeleteBranch         = OperationName("DeleteBranch")
)

// OperationName identifies a version control operation.
type OperationName string

// CommandExecutor is the subset of execshell.ShellExecutor used by the client.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteMercurial(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Identity is the author and committer recorded on commits created by the client.
type Identity struct {
	Name  string
	Email string
}

// String renders the identity in git author form.
func (identity Identity) String() string {
	return fmt.Sprintf(authorIdentityTemplateConstant, identity.Name, identity.Email)
}

// InvalidInputError reports a missing or malformed argument.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps a failed command with the operation it belonged to.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the failed operation.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the command failure.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ErrExecutorNotConfigured indicates the client was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessage)

// Client runs git and hg operations against local working copies.
type Client struct {
	executor CommandExecutor
	identity Identity
}

// NewClient constructs a Client. The identity is exported to every git invocation so commits
// never depend on the user's git configuration.
func NewClient(executor CommandExecutor, identity Identity) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor, identity: identity}, nil
}

// InitializeRepository runs git init with the given initial branch.
func (client *Client) InitializeRepository(executionContext context.Context, repositoryPath string, mainBranch string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, branchNameFieldNameConstant, mainBranch); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationInitializeRepository, repositoryPath, gitInitSubcommandConstant, gitInitialBranchFlagConstant, mainBranch)
}

// StageAll stages every change in the working tree.
func (client *Client) StageAll(executionContext context.Context, repositoryPath string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationStage, repositoryPath, gitAddSubcommandConstant, gitAllFlagConstant)
}

// StagePath stages one path relative to the repository root.
func (client *Client) StagePath(executionContext context.Context, repositoryPath string, relativePath string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, pathFieldNameConstant, relativePath); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationStage, repositoryPath, gitAddSubcommandConstant, gitPathSeparatorFlagConstant, relativePath)
}

// Commit records the staged changes authored by the client identity.
func (client *Client) Commit(executionContext context.Context, repositoryPath string, message string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, messageFieldNameConstant, message); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationCommit, repositoryPath, gitCommitSubcommandConstant, gitAuthorFlagConstant, client.identity.String(), gitMessageFlagConstant, message)
}

// CreateOrphanBranch switches to a new branch without history and empties the working tree.
func (client *Client) CreateOrphanBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, branchNameFieldNameConstant, branchName); validationError != nil {
		return validationError
	}
	if checkoutError := client.runGit(executionContext, OperationCreateOrphanBranch, repositoryPath, gitCheckoutSubcommandConstant, gitOrphanFlagConstant, branchName); checkoutError != nil {
		return checkoutError
	}
	if removeError := client.runGit(executionContext, OperationCreateOrphanBranch, repositoryPath, gitRemoveSubcommandConstant, gitRecursiveFlagConstant, gitForceFlagConstant, gitQuietFlagConstant, gitIgnoreUnmatchFlagConstant, gitCurrentDirectoryConstant); removeError != nil {
		return removeError
	}
	return client.runGit(executionContext, OperationCreateOrphanBranch, repositoryPath, gitCleanSubcommandConstant, gitForceFlagConstant, gitDirectoriesFlagConstant, gitIgnoredFilesFlagConstant)
}

// CloneHistory clones a Mercurial repository with its full history into destinationPath.
func (client *Client) CloneHistory(executionContext context.Context, sourceURL string, destinationPath string) error {
	if validationError := requireValues(sourceFieldNameConstant, sourceURL, destinationFieldNameConstant, destinationPath); validationError != nil {
		return validationError
	}
	_, executionError := client.executor.ExecuteMercurial(executionContext, execshell.CommandDetails{
		Arguments: []string{mercurialCloneSubcommandConstant, sourceURL, destinationPath},
	})
	if executionError != nil {
		return OperationError{Operation: OperationCloneHistory, Cause: executionError}
	}
	return nil
}

// PullHistory pulls a local Mercurial clone into the current branch through git-remote-hg.
func (client *Client) PullHistory(executionContext context.Context, repositoryPath string, mercurialClonePath string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, sourceFieldNameConstant, mercurialClonePath); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationPullHistory, repositoryPath, gitPullSubcommandConstant, gitMercurialRemotePrefixConstant+mercurialClonePath)
}

// RelocateHistory rewrites every commit of branchName so that all paths live under destination.
func (client *Client) RelocateHistory(executionContext context.Context, repositoryPath string, branchName string, destination string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, branchNameFieldNameConstant, branchName, destinationFieldNameConstant, destination); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationRelocateHistory, repositoryPath, gitFilterBranchSubcommandConstant, gitForceFlagConstant, gitIndexFilterFlagConstant, BuildRelocationIndexFilter(destination), branchName)
}

// CheckoutBranch switches to an existing branch.
func (client *Client) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, branchNameFieldNameConstant, branchName); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationCheckoutBranch, repositoryPath, gitCheckoutSubcommandConstant, branchName)
}

// MergeBranch merges branchName into the current branch with an explicit merge commit, accepting unrelated histories.
func (client *Client) MergeBranch(executionContext context.Context, repositoryPath string, branchName string, message string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, branchNameFieldNameConstant, branchName, messageFieldNameConstant, message); validationError != nil {
		return validationError
	}
	return client.runGit(executionContext, OperationMergeBranch, repositoryPath, gitMergeSubcommandConstant, gitAllowUnrelatedFlagConstant, gitNoFastForwardFlagConstant, gitMessageFlagConstant, message, branchName)
}

// DeleteBranch force-deletes a local branch together with the backup ref filter-branch left for it.
func (client *Client) DeleteBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, repositoryPath, branchNameFieldNameConstant, branchName); validationError != nil {
		return validationError
	}
	if deleteError := client.runGit(executionContext, OperationDeleteBranch, repositoryPath, gitBranchSubcommandConstant, gitForceDeleteFlagConstant, branchName); deleteError != nil {
		return deleteError
	}
	return client.runGit(executionContext, OperationDeleteBranch, repositoryPath, gitUpdateRefSubcommandConstant, gitDeleteFlagConstant, filterBranchBackupRefPrefixConstant+branchName)
}

func (client *Client) runGit(executionContext context.Context, operation OperationName, repositoryPath string, arguments ...string) error {
	_, executionError := client.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: client.environment(),
	})
	if executionError != nil {
		return OperationError{Operation: operation, Cause: executionError}
	}
	return nil
}

func (client *Client) environment() map[string]string {
	environment := map[string]string{filterBranchSquelchVariableConstant: filterBranchSquelchValueConstant}
	if len(strings.TrimSpace(client.identity.Name)) > 0 {
		environment[gitAuthorNameVariableConstant] = client.identity.Name
		environment[gitCommitterNameVariableConstant] = client.identity.Name
	}
	if len(strings.TrimSpace(client.identity.Email)) > 0 {
		environment[gitAuthorEmailVariableConstant] = client.identity.Email
		environment[gitCommitterEmailVariableConstant] = client.identity.Email
	}
	return environment
}

// requireValues validates alternating field name and value pairs.
func requireValues(fieldsAndValues ...string) error {
	for index := 0; index+1 < len(fieldsAndValues); index += 2 {
		if len(strings.TrimSpace(fieldsAndValues[index+1])) == 0 {
			return InvalidInputError{FieldName: fieldsAndValues[index], Message: requiredValueMessageConstant}
		}
	}
	return nil
}
