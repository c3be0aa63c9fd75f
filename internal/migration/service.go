package migration

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/temirov/shed2git/internal/classification"
	"github.com/temirov/shed2git/internal/consolidation"
	"github.com/temirov/shed2git/internal/toolshed"
)

const (
	repositorySummaryTemplateConstant       = "name: %s, type %s, id %s\n"
	registryMissingMessageConstant          = "repository registry not configured"
	classifierMissingMessageConstant        = "classification policy not configured"
	layoutInitializerMissingMessageConstant = "layout initializer not configured"
	importerProviderMissingMessageConstant  = "importer provider not configured"
	listErrorTemplateConstant               = "unable to list repositories of %s: %w"
	summaryWriteErrorTemplateConstant       = "unable to write repository summary: %w"
	workspaceErrorTemplateConstant          = "unable to prepare scratch workspace: %w"
	layoutErrorTemplateConstant             = "unable to initialize consolidated repository: %w"
	importerErrorTemplateConstant           = "unable to construct importer: %w"
	repositoryExcludedMessageConstant       = "repository excluded"
	repositoryUnsupportedMessageConstant    = "repository type unsupported, skipping"
	repositoryUnsafeNameMessageConstant     = "repository name is not a safe path component, skipping"
	repositoryPlannedMessageConstant        = "repository placement planned"
	layoutSkippedMessageConstant            = "resuming, layout initialization skipped"
	buildCompletedMessageConstant           = "consolidation completed"
	workspaceReleaseFailedMessageConstant   = "scratch workspace cleanup failed"
	logFieldRepositoryNameConstant          = "repository"
	logFieldRepositoryTypeConstant          = "repository_type"
	logFieldDestinationConstant             = "destination"
	logFieldImportedCountConstant           = "imported"
	logFieldExcludedCountConstant           = "excluded"
	logFieldUnsupportedCountConstant        = "unsupported"
	logFieldRejectedCountConstant           = "rejected"
	logFieldPlannedCountConstant            = "planned"
	logFieldDryRunConstant                  = "dry_run"
	logFieldWorkspaceConstant               = "workspace"
)

// RepositoryLister lists the repositories of an owner.
type RepositoryLister interface {
	ListRepositories(executionContext context.Context, owner string) ([]toolshed.Repository, error)
}

// RepositoryClassifier places repositories in the consolidated layout.
type RepositoryClassifier interface {
	Classify(repository toolshed.Repository) classification.Placement
}

// RepositoryImporter imports one classified repository.
type RepositoryImporter interface {
	Import(executionContext context.Context, repository toolshed.Repository, placement classification.Placement) error
}

// LayoutInitializer prepares an empty consolidated repository.
type LayoutInitializer interface {
	Initialize(executionContext context.Context) error
}

// ImporterProvider constructs an importer bound to the run's scratch workspace.
type ImporterProvider func(workspace *consolidation.Workspace) (RepositoryImporter, error)

// ServiceDependencies lists the collaborators of Service.
type ServiceDependencies struct {
	Logger            *zap.Logger
	Registry          RepositoryLister
	Classifier        RepositoryClassifier
	LayoutInitializer LayoutInitializer
	ImporterProvider  ImporterProvider
	Output            io.Writer
}

// BuildOptions configures one build run.
type BuildOptions struct {
	Owner         string
	ScratchParent string
	Resume        bool
	DryRun        bool
}

// BuildSummary counts what happened to each repository during a build.
type BuildSummary struct {
	Imported    int
	Excluded    int
	Unsupported int
	Rejected    int
	Planned     int
}

var (
	// ErrRegistryNotConfigured indicates a missing RepositoryLister.
	ErrRegistryNotConfigured = errors.New(registryMissingMessageConstant)
	// ErrClassifierNotConfigured indicates a missing RepositoryClassifier.
	ErrClassifierNotConfigured = errors.New(classifierMissingMessageConstant)
	// ErrLayoutInitializerNotConfigured indicates a build without a LayoutInitializer.
	ErrLayoutInitializerNotConfigured = errors.New(layoutInitializerMissingMessageConstant)
	// ErrImporterProviderNotConfigured indicates a build without an ImporterProvider.
	ErrImporterProviderNotConfigured = errors.New(importerProviderMissingMessageConstant)
)

// Service implements the list and build operations.
type Service struct {
	logger            *zap.Logger
	registry          RepositoryLister
	classifier        RepositoryClassifier
	layoutInitializer LayoutInitializer
	importerProvider  ImporterProvider
	output            io.Writer
}

// NewService validates the dependencies required by every operation. Build-only collaborators are
// checked when Build runs.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Registry == nil {
		return nil, ErrRegistryNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := dependencies.Output
	if output == nil {
		output = io.Discard
	}

	return &Service{
		logger:            logger,
		registry:          dependencies.Registry,
		classifier:        dependencies.Classifier,
		layoutInitializer: dependencies.LayoutInitializer,
		importerProvider:  dependencies.ImporterProvider,
		output:            output,
	}, nil
}

// List writes one summary line per repository of owner, in registry order.
func (service *Service) List(executionContext context.Context, owner string) error {
	repositories, listError := service.registry.ListRepositories(executionContext, owner)
	if listError != nil {
		return fmt.Errorf(listErrorTemplateConstant, owner, listError)
	}

	for _, repository := range repositories {
		if _, writeError := fmt.Fprintf(service.output, repositorySummaryTemplateConstant, repository.Name, repository.Type, repository.Identifier); writeError != nil {
			return fmt.Errorf(summaryWriteErrorTemplateConstant, writeError)
		}
	}
	return nil
}

// Build consolidates every repository of the owner. Repositories are processed sequentially in
// registry order and the first import failure aborts the run.
func (service *Service) Build(executionContext context.Context, options BuildOptions) (BuildSummary, error) {
	if service.classifier == nil {
		return BuildSummary{}, ErrClassifierNotConfigured
	}

	repositories, listError := service.registry.ListRepositories(executionContext, options.Owner)
	if listError != nil {
		return BuildSummary{}, fmt.Errorf(listErrorTemplateConstant, options.Owner, listError)
	}

	if options.DryRun {
		summary := service.plan(repositories)
		service.logSummary(summary, true)
		return summary, nil
	}

	if service.layoutInitializer == nil && !options.Resume {
		return BuildSummary{}, ErrLayoutInitializerNotConfigured
	}
	if service.importerProvider == nil {
		return BuildSummary{}, ErrImporterProviderNotConfigured
	}

	workspace, workspaceError := consolidation.AcquireWorkspace(options.ScratchParent)
	if workspaceError != nil {
		return BuildSummary{}, fmt.Errorf(workspaceErrorTemplateConstant, workspaceError)
	}
	defer func() {
		if releaseError := workspace.Release(); releaseError != nil {
			service.logger.Warn(workspaceReleaseFailedMessageConstant, zap.String(logFieldWorkspaceConstant, workspace.Path()), zap.Error(releaseError))
		}
	}()

	if options.Resume {
		service.logger.Info(layoutSkippedMessageConstant)
	} else if initializeError := service.layoutInitializer.Initialize(executionContext); initializeError != nil {
		return BuildSummary{}, fmt.Errorf(layoutErrorTemplateConstant, initializeError)
	}

	importer, importerError := service.importerProvider(workspace)
	if importerError != nil {
		return BuildSummary{}, fmt.Errorf(importerErrorTemplateConstant, importerError)
	}

	var summary BuildSummary
	for _, repository := range repositories {
		if contextError := executionContext.Err(); contextError != nil {
			return summary, contextError
		}

		placement := service.classifier.Classify(repository)
		if service.recordSkipped(repository, placement, &summary) {
			continue
		}

		if importError := importer.Import(executionContext, repository, placement); importError != nil {
			return summary, importError
		}
		summary.Imported++
	}

	service.logSummary(summary, false)
	return summary, nil
}

func (service *Service) plan(repositories []toolshed.Repository) BuildSummary {
	var summary BuildSummary
	for _, repository := range repositories {
		placement := service.classifier.Classify(repository)
		if service.recordSkipped(repository, placement, &summary) {
			continue
		}
		service.logger.Info(
			repositoryPlannedMessageConstant,
			zap.String(logFieldRepositoryNameConstant, repository.Name),
			zap.String(logFieldRepositoryTypeConstant, string(repository.Type)),
			zap.String(logFieldDestinationConstant, placement.Destination()),
		)
		summary.Planned++
	}
	return summary
}

// recordSkipped logs and counts repositories that classification does not import.
func (service *Service) recordSkipped(repository toolshed.Repository, placement classification.Placement, summary *BuildSummary) bool {
	switch placement.Disposition {
	case classification.DispositionExcluded:
		service.logger.Info(repositoryExcludedMessageConstant, zap.String(logFieldRepositoryNameConstant, repository.Name))
		summary.Excluded++
		return true
	case classification.DispositionUnsupportedType:
		service.logger.Warn(
			repositoryUnsupportedMessageConstant,
			zap.String(logFieldRepositoryNameConstant, repository.Name),
			zap.String(logFieldRepositoryTypeConstant, string(repository.Type)),
		)
		summary.Unsupported++
		return true
	case classification.DispositionUnsafeName:
		service.logger.Warn(repositoryUnsafeNameMessageConstant, zap.String(logFieldRepositoryNameConstant, repository.Name))
		summary.Rejected++
		return true
	default:
		return false
	}
}

func (service *Service) logSummary(summary BuildSummary, dryRun bool) {
	service.logger.Info(
		buildCompletedMessageConstant,
		zap.Bool(logFieldDryRunConstant, dryRun),
		zap.Int(logFieldImportedCountConstant, summary.Imported),
		zap.Int(logFieldPlannedCountConstant, summary.Planned),
		zap.Int(logFieldExcludedCountConstant, summary.Excluded),
		zap.Int(logFieldUnsupportedCountConstant, summary.Unsupported),
		zap.Int(logFieldRejectedCountConstant, summary.Rejected),
	)
}
