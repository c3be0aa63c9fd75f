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
)

const (
	placeholderFileNameConstant          = ".gitkeep"
	layoutCommitMessageConstant          = "Initialize consolidated repository layout"
	targetDirectoryRequiredMessage       = "target directory required"
	mainBranchRequiredMessage            = "main branch required"
	layoutResetErrorTemplateConstant     = "unable to reset target directory %s: %w"
	layoutDirectoryErrorTemplateConstant = "unable to create layout directory %s: %w"
	layoutInitializedMessageConstant     = "consolidated repository layout initialized"
	logFieldTargetDirectoryConstant      = "target_directory"
	logFieldMainBranchConstant           = "main_branch"
	logFieldCategoriesConstant           = "categories"
	layoutDirectoryPermissionsConstant   = 0o755
	layoutPlaceholderPermissionsConstant = 0o644
)

var (
	// ErrTargetDirectoryRequired indicates an empty target directory.
	ErrTargetDirectoryRequired = errors.New(targetDirectoryRequiredMessage)
	// ErrMainBranchRequired indicates an empty main branch name.
	ErrMainBranchRequired = errors.New(mainBranchRequiredMessage)
)

// LayoutInitializer recreates the consolidated repository with its empty category directories.
type LayoutInitializer struct {
	versionControl  VersionControl
	logger          *zap.Logger
	targetDirectory string
	mainBranch      string
}

// NewLayoutInitializer validates its inputs and constructs a LayoutInitializer.
func NewLayoutInitializer(versionControl VersionControl, logger *zap.Logger, targetDirectory string, mainBranch string) (*LayoutInitializer, error) {
	if versionControl == nil {
		return nil, ErrVersionControlNotConfigured
	}
	if len(strings.TrimSpace(targetDirectory)) == 0 {
		return nil, ErrTargetDirectoryRequired
	}
	if len(strings.TrimSpace(mainBranch)) == 0 {
		return nil, ErrMainBranchRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayoutInitializer{
		versionControl:  versionControl,
		logger:          logger,
		targetDirectory: targetDirectory,
		mainBranch:      mainBranch,
	}, nil
}

// Initialize removes any existing target directory, creates the category directories with
// placeholder files, initializes git on the main branch and commits the layout.
func (initializer *LayoutInitializer) Initialize(executionContext context.Context) error {
	if removeError := os.RemoveAll(initializer.targetDirectory); removeError != nil {
		return fmt.Errorf(layoutResetErrorTemplateConstant, initializer.targetDirectory, removeError)
	}

	categories := classification.LayoutCategories()
	categoryNames := make([]string, 0, len(categories))
	for _, category := range categories {
		categoryDirectory := filepath.Join(initializer.targetDirectory, string(category))
		if mkdirError := os.MkdirAll(categoryDirectory, layoutDirectoryPermissionsConstant); mkdirError != nil {
			return fmt.Errorf(layoutDirectoryErrorTemplateConstant, categoryDirectory, mkdirError)
		}
		placeholderPath := filepath.Join(categoryDirectory, placeholderFileNameConstant)
		if writeError := os.WriteFile(placeholderPath, nil, layoutPlaceholderPermissionsConstant); writeError != nil {
			return fmt.Errorf(layoutDirectoryErrorTemplateConstant, categoryDirectory, writeError)
		}
		categoryNames = append(categoryNames, string(category))
	}

	if initError := initializer.versionControl.InitializeRepository(executionContext, initializer.targetDirectory, initializer.mainBranch); initError != nil {
		return initError
	}
	if stageError := initializer.versionControl.StageAll(executionContext, initializer.targetDirectory); stageError != nil {
		return stageError
	}
	if commitError := initializer.versionControl.Commit(executionContext, initializer.targetDirectory, layoutCommitMessageConstant); commitError != nil {
		return commitError
	}

	initializer.logger.Info(
		layoutInitializedMessageConstant,
		zap.String(logFieldTargetDirectoryConstant, initializer.targetDirectory),
		zap.String(logFieldMainBranchConstant, initializer.mainBranch),
		zap.Strings(logFieldCategoriesConstant, categoryNames),
	)
	return nil
}
