package consolidation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/shed2git/internal/classification"
	"github.com/temirov/shed2git/internal/toolshed"
)

const (
	importBranchPrefixConstant             = "import/"
	mercurialMetadataDirectoryConstant     = ".hg"
	historyMergeMessageTemplateConstant    = "Merge history of %s from %s"
	snapshotCommitMessageTemplateConstant  = "Import %s from %s"
	importErrorTemplateConstant            = "import of %s failed during %s: %v"
	unsupportedModeErrorTemplateConstant   = "unsupported import mode %q"
	placementNotImportableTemplateConstant = "repository %s has disposition %s and cannot be imported"
	unsafeRepositoryNameTemplateConstant   = "repository name %q cannot be used as a path component"
	versionControlMissingMessageConstant   = "version control capability not configured"
	cloneURLResolverMissingMessageConstant = "clone URL resolver not configured"
	workspaceMissingMessageConstant        = "scratch workspace not configured"
	repositoryImportedMessageConstant      = "repository imported"
	logFieldRepositoryConstant             = "repository"
	logFieldDestinationConstant            = "destination"
	logFieldImportModeConstant             = "import_mode"
	logFieldCloneURLConstant               = "clone_url"
	importModeHistoryValueConstant         = "history"
	importModeSnapshotValueConstant        = "snapshot"
)

// ImportMode selects how repository content reaches the consolidated repository.
type ImportMode string

// Supported import modes.
const (
	ImportModeHistory  ImportMode = ImportMode(importModeHistoryValueConstant)
	ImportModeSnapshot ImportMode = ImportMode(importModeSnapshotValueConstant)
)

// ImportModes lists the supported import modes.
func ImportModes() []string {
	return []string{string(ImportModeHistory), string(ImportModeSnapshot)}
}

// ImportStep names a stage of the import procedure.
type ImportStep string

// Import stages.
const (
	ImportStepOrphanBranch ImportStep = ImportStep("orphan_branch")
	ImportStepClone        ImportStep = ImportStep("clone")
	ImportStepPull         ImportStep = ImportStep("pull")
	ImportStepRelocate     ImportStep = ImportStep("relocate")
	ImportStepCheckout     ImportStep = ImportStep("checkout")
	ImportStepMerge        ImportStep = ImportStep("merge")
	ImportStepDeleteBranch ImportStep = ImportStep("delete_branch")
	ImportStepCopy         ImportStep = ImportStep("copy")
	ImportStepStage        ImportStep = ImportStep("stage")
	ImportStepCommit       ImportStep = ImportStep("commit")
	ImportStepCleanup      ImportStep = ImportStep("cleanup")
)

// VersionControl is the git and Mercurial capability required by the consolidation.
type VersionControl interface {
	InitializeRepository(executionContext context.Context, repositoryPath string, mainBranch string) error
	StageAll(executionContext context.Context, repositoryPath string) error
	StagePath(executionContext context.Context, repositoryPath string, relativePath string) error
	Commit(executionContext context.Context, repositoryPath string, message string) error
	CreateOrphanBranch(executionContext context.Context, repositoryPath string, branchName string) error
	CloneHistory(executionContext context.Context, sourceURL string, destinationPath string) error
	PullHistory(executionContext context.Context, repositoryPath string, mercurialClonePath string) error
	RelocateHistory(executionContext context.Context, repositoryPath string, branchName string, destination string) error
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error
	MergeBranch(executionContext context.Context, repositoryPath string, branchName string, message string) error
	DeleteBranch(executionContext context.Context, repositoryPath string, branchName string) error
}

// CloneURLResolver maps a registry repository to the URL its history is cloned from.
type CloneURLResolver interface {
	CloneURL(repository toolshed.Repository) string
}

// ImportError wraps a failed import stage with the repository it concerned.
type ImportError struct {
	Repository string
	Step       ImportStep
	Cause      error
}

// Error describes the failed stage.
func (importError ImportError) Error() string {
	return fmt.Sprintf(importErrorTemplateConstant, importError.Repository, importError.Step, importError.Cause)
}

// Unwrap exposes the underlying failure.
func (importError ImportError) Unwrap() error {
	return importError.Cause
}

// UnsupportedImportModeError reports an unknown import mode.
type UnsupportedImportModeError struct {
	Mode ImportMode
}

// Error describes the unsupported mode.
func (modeError UnsupportedImportModeError) Error() string {
	return fmt.Sprintf(unsupportedModeErrorTemplateConstant, modeError.Mode)
}

// UnsafeRepositoryNameError reports a repository whose name would resolve outside the scratch or target directories.
type UnsafeRepositoryNameError struct {
	Repository string
}

// Error describes the rejected name.
func (nameError UnsafeRepositoryNameError) Error() string {
	return fmt.Sprintf(unsafeRepositoryNameTemplateConstant, nameError.Repository)
}

// PlacementNotImportableError reports an attempt to import a repository that classification skipped.
type PlacementNotImportableError struct {
	Repository  string
	Disposition classification.Disposition
}

// Error describes the rejected placement.
func (placementError PlacementNotImportableError) Error() string {
	return fmt.Sprintf(placementNotImportableTemplateConstant, placementError.Repository, placementError.Disposition)
}

var (
	// ErrVersionControlNotConfigured indicates a missing VersionControl dependency.
	ErrVersionControlNotConfigured = errors.New(versionControlMissingMessageConstant)
	// ErrCloneURLResolverNotConfigured indicates a missing CloneURLResolver dependency.
	ErrCloneURLResolverNotConfigured = errors.New(cloneURLResolverMissingMessageConstant)
	// ErrWorkspaceNotConfigured indicates a missing scratch workspace.
	ErrWorkspaceNotConfigured = errors.New(workspaceMissingMessageConstant)
)

// ImporterConfiguration describes where and how repositories are imported.
type ImporterConfiguration struct {
	TargetDirectory string
	MainBranch      string
	Mode            ImportMode
}

// ImporterDependencies lists the collaborators of an Importer.
type ImporterDependencies struct {
	VersionControl   VersionControl
	CloneURLResolver CloneURLResolver
	Workspace        *Workspace
	Logger           *zap.Logger
}

// Importer brings classified repositories into the consolidated repository.
type Importer struct {
	configuration    ImporterConfiguration
	versionControl   VersionControl
	cloneURLResolver CloneURLResolver
	workspace        *Workspace
	logger           *zap.Logger
}

// NewImporter validates the configuration and constructs an Importer. An empty mode selects history import.
func NewImporter(configuration ImporterConfiguration, dependencies ImporterDependencies) (*Importer, error) {
	if dependencies.VersionControl == nil {
		return nil, ErrVersionControlNotConfigured
	}
	if dependencies.CloneURLResolver == nil {
		return nil, ErrCloneURLResolverNotConfigured
	}
	if dependencies.Workspace == nil {
		return nil, ErrWorkspaceNotConfigured
	}
	if len(strings.TrimSpace(configuration.TargetDirectory)) == 0 {
		return nil, ErrTargetDirectoryRequired
	}
	if len(strings.TrimSpace(configuration.MainBranch)) == 0 {
		return nil, ErrMainBranchRequired
	}

	normalizedMode := ImportMode(strings.ToLower(strings.TrimSpace(string(configuration.Mode))))
	switch normalizedMode {
	case "":
		normalizedMode = ImportModeHistory
	case ImportModeHistory, ImportModeSnapshot:
	default:
		return nil, UnsupportedImportModeError{Mode: configuration.Mode}
	}
	configuration.Mode = normalizedMode

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Importer{
		configuration:    configuration,
		versionControl:   dependencies.VersionControl,
		cloneURLResolver: dependencies.CloneURLResolver,
		workspace:        dependencies.Workspace,
		logger:           logger,
	}, nil
}

// BranchNameFor returns the temporary branch that carries a repository's history during import.
func BranchNameFor(repositoryName string) string {
	return importBranchPrefixConstant + repositoryName
}

// Import places the repository at the destination computed by classification. Any failure aborts
// the import and is returned as ImportError.
func (importer *Importer) Import(executionContext context.Context, repository toolshed.Repository, placement classification.Placement) error {
	if !classification.IsSafeRepositoryName(repository.Name) || placement.RepositoryName != repository.Name {
		return UnsafeRepositoryNameError{Repository: repository.Name}
	}
	if placement.Disposition != classification.DispositionImport {
		return PlacementNotImportableError{Repository: repository.Name, Disposition: placement.Disposition}
	}

	cloneURL := importer.cloneURLResolver.CloneURL(repository)
	destination := placement.Destination()

	var importError error
	switch importer.configuration.Mode {
	case ImportModeSnapshot:
		importError = importer.importSnapshot(executionContext, repository, destination, cloneURL)
	default:
		importError = importer.importHistory(executionContext, repository, destination, cloneURL)
	}
	if importError != nil {
		return importError
	}

	importer.logger.Info(
		repositoryImportedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.Name),
		zap.String(logFieldDestinationConstant, destination),
		zap.String(logFieldImportModeConstant, string(importer.configuration.Mode)),
		zap.String(logFieldCloneURLConstant, cloneURL),
	)
	return nil
}

func (importer *Importer) importHistory(executionContext context.Context, repository toolshed.Repository, destination string, cloneURL string) error {
	targetDirectory := importer.configuration.TargetDirectory
	branchName := BranchNameFor(repository.Name)
	scratchClonePath := importer.workspace.PathFor(repository.Name)
	defer func() { _ = os.RemoveAll(scratchClonePath) }()

	stages := []importStage{
		{ImportStepOrphanBranch, func() error {
			return importer.versionControl.CreateOrphanBranch(executionContext, targetDirectory, branchName)
		}},
		{ImportStepClone, func() error {
			return importer.versionControl.CloneHistory(executionContext, cloneURL, scratchClonePath)
		}},
		{ImportStepPull, func() error {
			return importer.versionControl.PullHistory(executionContext, targetDirectory, scratchClonePath)
		}},
		{ImportStepRelocate, func() error {
			return importer.versionControl.RelocateHistory(executionContext, targetDirectory, branchName, destination)
		}},
		{ImportStepCheckout, func() error {
			return importer.versionControl.CheckoutBranch(executionContext, targetDirectory, importer.configuration.MainBranch)
		}},
		{ImportStepMerge, func() error {
			mergeMessage := fmt.Sprintf(historyMergeMessageTemplateConstant, repository.Name, cloneURL)
			return importer.versionControl.MergeBranch(executionContext, targetDirectory, branchName, mergeMessage)
		}},
		{ImportStepDeleteBranch, func() error {
			return importer.versionControl.DeleteBranch(executionContext, targetDirectory, branchName)
		}},
		{ImportStepCleanup, func() error {
			return os.RemoveAll(scratchClonePath)
		}},
	}

	return runStages(repository.Name, stages)
}

func (importer *Importer) importSnapshot(executionContext context.Context, repository toolshed.Repository, destination string, cloneURL string) error {
	targetDirectory := importer.configuration.TargetDirectory
	scratchClonePath := importer.workspace.PathFor(repository.Name)
	defer func() { _ = os.RemoveAll(scratchClonePath) }()

	stages := []importStage{
		{ImportStepClone, func() error {
			return importer.versionControl.CloneHistory(executionContext, cloneURL, scratchClonePath)
		}},
		{ImportStepCopy, func() error {
			if removeError := os.RemoveAll(filepath.Join(scratchClonePath, mercurialMetadataDirectoryConstant)); removeError != nil {
				return removeError
			}
			return os.CopyFS(filepath.Join(targetDirectory, filepath.FromSlash(destination)), os.DirFS(scratchClonePath))
		}},
		{ImportStepStage, func() error {
			return importer.versionControl.StagePath(executionContext, targetDirectory, destination)
		}},
		{ImportStepCommit, func() error {
			commitMessage := fmt.Sprintf(snapshotCommitMessageTemplateConstant, repository.Name, cloneURL)
			return importer.versionControl.Commit(executionContext, targetDirectory, commitMessage)
		}},
		{ImportStepCleanup, func() error {
			return os.RemoveAll(scratchClonePath)
		}},
	}

	return runStages(repository.Name, stages)
}

type importStage struct {
	step ImportStep
	run  func() error
}

func runStages(repositoryName string, stages []importStage) error {
	for _, stage := range stages {
		if stageError := stage.run(); stageError != nil {
			return ImportError{Repository: repositoryName, Step: stage.step, Cause: stageError}
		}
	}
	return nil
}
