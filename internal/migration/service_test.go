package migration_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/shed2git/internal/classification"
	"github.com/temirov/shed2git/internal/consolidation"
	"github.com/temirov/shed2git/internal/migration"
	"github.com/temirov/shed2git/internal/toolshed"
)

const (
	testOwnerConstant = "devteam"
)

var errRegistryUnavailable = errors.New("registry unavailable")

type stubRegistry struct {
	repositories []toolshed.Repository
	listError    error
	owners       []string
}

func (registry *stubRegistry) ListRepositories(_ context.Context, owner string) ([]toolshed.Repository, error) {
	registry.owners = append(registry.owners, owner)
	return registry.repositories, registry.listError
}

type recordingInitializer struct {
	initializations int
}

func (initializer *recordingInitializer) Initialize(context.Context) error {
	initializer.initializations++
	return nil
}

type importInvocation struct {
	repository  string
	destination string
}

type recordingImporter struct {
	invocations []importInvocation
	importError error
}

func (importer *recordingImporter) Import(_ context.Context, repository toolshed.Repository, placement classification.Placement) error {
	importer.invocations = append(importer.invocations, importInvocation{repository: repository.Name, destination: placement.Destination()})
	return importer.importError
}

func newTestPolicy(testInstance *testing.T) *classification.Policy {
	testInstance.Helper()
	policy, policyError := classification.NewPolicy(classification.PolicyDefinition{
		Collections: map[string][]string{"samtools": {"sam_merge"}},
		Excluded:    []string{"tophat"},
	})
	require.NoError(testInstance, policyError)
	return policy
}

func mixedRepositories() []toolshed.Repository {
	return []toolshed.Repository{
		{Name: "tophat", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted, Identifier: "1"},
		{Name: "sam_merge", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted, Identifier: "2"},
		{Name: "mystery", Owner: testOwnerConstant, Type: toolshed.RepositoryType("workflow_bundle"), Identifier: "3"},
	}
}

type serviceFixture struct {
	service     *migration.Service
	registry    *stubRegistry
	initializer *recordingInitializer
	importer    *recordingImporter
	logs        *observer.ObservedLogs
	workspaces  []*consolidation.Workspace
}

func newServiceFixture(testInstance *testing.T, repositories []toolshed.Repository) *serviceFixture {
	testInstance.Helper()
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	fixture := &serviceFixture{
		registry:    &stubRegistry{repositories: repositories},
		initializer: &recordingInitializer{},
		importer:    &recordingImporter{},
		logs:        observedLogs,
	}

	service, serviceError := migration.NewService(migration.ServiceDependencies{
		Logger:            zap.New(observerCore),
		Registry:          fixture.registry,
		Classifier:        newTestPolicy(testInstance),
		LayoutInitializer: fixture.initializer,
		ImporterProvider: func(workspace *consolidation.Workspace) (migration.RepositoryImporter, error) {
			fixture.workspaces = append(fixture.workspaces, workspace)
			return fixture.importer, nil
		},
	})
	require.NoError(testInstance, serviceError)
	fixture.service = service
	return fixture
}

func TestServiceListPrintsRepositoriesInRegistryOrder(testInstance *testing.T) {
	registry := &stubRegistry{repositories: []toolshed.Repository{
		{Name: "repository_a", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted, Identifier: "a1"},
		{Name: "repository_b", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeSuiteDefinition, Identifier: "b2"},
	}}
	outputBuffer := &bytes.Buffer{}
	service, serviceError := migration.NewService(migration.ServiceDependencies{Registry: registry, Output: outputBuffer})
	require.NoError(testInstance, serviceError)

	require.NoError(testInstance, service.List(context.Background(), testOwnerConstant))

	require.Equal(testInstance,
		"name: repository_a, type unrestricted, id a1\nname: repository_b, type repository_suite_definition, id b2\n",
		outputBuffer.String(),
	)
	require.Equal(testInstance, []string{testOwnerConstant}, registry.owners)
}

func TestServiceBuildImportsClassifiedRepositories(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, mixedRepositories())

	summary, buildError := fixture.service.Build(context.Background(), migration.BuildOptions{Owner: testOwnerConstant, ScratchParent: testInstance.TempDir()})
	require.NoError(testInstance, buildError)

	require.Equal(testInstance, migration.BuildSummary{Imported: 1, Excluded: 1, Unsupported: 1}, summary)
	require.Equal(testInstance, []importInvocation{{repository: "sam_merge", destination: "tool_collections/samtools/sam_merge"}}, fixture.importer.invocations)
	require.Equal(testInstance, 1, fixture.initializer.initializations)

	unsupportedLogs := fixture.logs.FilterMessage("repository type unsupported, skipping").All()
	require.Len(testInstance, unsupportedLogs, 1)
	require.Equal(testInstance, zapcore.WarnLevel, unsupportedLogs[0].Level)
	require.Equal(testInstance, 1, fixture.logs.FilterMessage("repository excluded").Len())

	require.Len(testInstance, fixture.workspaces, 1)
	require.NoDirExists(testInstance, fixture.workspaces[0].Path())
}

func TestServiceBuildSkipsRepositoriesWithUnsafeNames(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, []toolshed.Repository{
		{Name: "../victim", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted, Identifier: "1"},
		{Name: "sam_merge", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted, Identifier: "2"},
	})

	summary, buildError := fixture.service.Build(context.Background(), migration.BuildOptions{Owner: testOwnerConstant, ScratchParent: testInstance.TempDir()})
	require.NoError(testInstance, buildError)

	require.Equal(testInstance, migration.BuildSummary{Imported: 1, Rejected: 1}, summary)
	require.Equal(testInstance, []importInvocation{{repository: "sam_merge", destination: "tool_collections/samtools/sam_merge"}}, fixture.importer.invocations)

	rejectedLogs := fixture.logs.FilterMessage("repository name is not a safe path component, skipping").All()
	require.Len(testInstance, rejectedLogs, 1)
	require.Equal(testInstance, zapcore.WarnLevel, rejectedLogs[0].Level)
}

func TestServiceBuildResumeSkipsInitialization(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, mixedRepositories())

	summary, buildError := fixture.service.Build(context.Background(), migration.BuildOptions{Owner: testOwnerConstant, ScratchParent: testInstance.TempDir(), Resume: true})
	require.NoError(testInstance, buildError)

	require.Equal(testInstance, 0, fixture.initializer.initializations)
	require.Equal(testInstance, 1, summary.Imported)
}

func TestServiceBuildDryRunLeavesTargetUntouched(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, mixedRepositories())

	summary, buildError := fixture.service.Build(context.Background(), migration.BuildOptions{Owner: testOwnerConstant, DryRun: true})
	require.NoError(testInstance, buildError)

	require.Equal(testInstance, migration.BuildSummary{Planned: 1, Excluded: 1, Unsupported: 1}, summary)
	require.Equal(testInstance, 0, fixture.initializer.initializations)
	require.Empty(testInstance, fixture.importer.invocations)
	require.Empty(testInstance, fixture.workspaces)

	plannedLogs := fixture.logs.FilterMessage("repository placement planned").All()
	require.Len(testInstance, plannedLogs, 1)
	require.Equal(testInstance, "tool_collections/samtools/sam_merge", plannedLogs[0].ContextMap()["destination"])
}

func TestServiceBuildFailures(testInstance *testing.T) {
	testInstance.Run("registry_failure_precedes_initialization", func(testInstance *testing.T) {
		fixture := newServiceFixture(testInstance, nil)
		fixture.registry.listError = errRegistryUnavailable

		_, buildError := fixture.service.Build(context.Background(), migration.BuildOptions{Owner: testOwnerConstant})
		require.ErrorIs(testInstance, buildError, errRegistryUnavailable)
		require.Equal(testInstance, 0, fixture.initializer.initializations)
	})

	testInstance.Run("import_failure_aborts_run", func(testInstance *testing.T) {
		repositories := []toolshed.Repository{
			{Name: "sam_merge", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted},
			{Name: "bowtie2", Owner: testOwnerConstant, Type: toolshed.RepositoryTypeUnrestricted},
		}
		fixture := newServiceFixture(testInstance, repositories)
		fixture.importer.importError = consolidation.ImportError{Repository: "sam_merge", Step: consolidation.ImportStepPull, Cause: errRegistryUnavailable}

		summary, buildError := fixture.service.Build(context.Background(), migration.BuildOptions{Owner: testOwnerConstant, ScratchParent: testInstance.TempDir()})

		var importError consolidation.ImportError
		require.ErrorAs(testInstance, buildError, &importError)
		require.Equal(testInstance, consolidation.ImportStepPull, importError.Step)
		require.Len(testInstance, fixture.importer.invocations, 1)
		require.Equal(testInstance, 0, summary.Imported)
		require.NoDirExists(testInstance, fixture.workspaces[0].Path())
	})

	testInstance.Run("cancelled_context_stops_before_import", func(testInstance *testing.T) {
		fixture := newServiceFixture(testInstance, mixedRepositories())
		cancelledContext, cancel := context.WithCancel(context.Background())
		cancel()

		_, buildError := fixture.service.Build(cancelledContext, migration.BuildOptions{Owner: testOwnerConstant, ScratchParent: testInstance.TempDir(), Resume: true})
		require.ErrorIs(testInstance, buildError, context.Canceled)
		require.Empty(testInstance, fixture.importer.invocations)
	})

	testInstance.Run("missing_registry", func(testInstance *testing.T) {
		_, serviceError := migration.NewService(migration.ServiceDependencies{})
		require.ErrorIs(testInstance, serviceError, migration.ErrRegistryNotConfigured)
	})
}
