package consolidation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/shed2git/internal/classification"
	"github.com/temirov/shed2git/internal/consolidation"
)

func TestLayoutInitializerRecreatesTarget(testInstance *testing.T) {
	targetDirectory := filepath.Join(testInstance.TempDir(), "repo")
	require.NoError(testInstance, os.MkdirAll(filepath.Join(targetDirectory, "stale"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(targetDirectory, "stale", "leftover.txt"), []byte("old"), 0o644))

	observerCore, observedLogs := observer.New(zap.InfoLevel)
	versionControl := &fakeVersionControl{}
	initializer, initializerError := consolidation.NewLayoutInitializer(versionControl, zap.New(observerCore), targetDirectory, testMainBranchConstant)
	require.NoError(testInstance, initializerError)

	require.NoError(testInstance, initializer.Initialize(context.Background()))

	require.NoDirExists(testInstance, filepath.Join(targetDirectory, "stale"))
	for _, category := range classification.LayoutCategories() {
		require.FileExists(testInstance, filepath.Join(targetDirectory, string(category), ".gitkeep"))
	}
	require.Equal(testInstance, []string{
		"init " + targetDirectory + " master",
		"stage_all " + targetDirectory,
		"commit " + targetDirectory + " Initialize consolidated repository layout",
	}, versionControl.calls)
	require.Equal(testInstance, 1, observedLogs.FilterMessage("consolidated repository layout initialized").Len())
}

func TestLayoutInitializerPropagatesFailures(testInstance *testing.T) {
	versionControl := &fakeVersionControl{failOperation: "init"}
	initializer, initializerError := consolidation.NewLayoutInitializer(versionControl, nil, filepath.Join(testInstance.TempDir(), "repo"), testMainBranchConstant)
	require.NoError(testInstance, initializerError)

	require.ErrorIs(testInstance, initializer.Initialize(context.Background()), errInjectedFailure)
	require.Len(testInstance, versionControl.calls, 1)

	_, missingTargetError := consolidation.NewLayoutInitializer(versionControl, nil, " ", testMainBranchConstant)
	require.ErrorIs(testInstance, missingTargetError, consolidation.ErrTargetDirectoryRequired)
}

func TestWorkspaceLifecycle(testInstance *testing.T) {
	parentDirectory := filepath.Join(testInstance.TempDir(), "scratch")

	workspace, acquireError := consolidation.AcquireWorkspace(parentDirectory)
	require.NoError(testInstance, acquireError)
	require.DirExists(testInstance, workspace.Path())
	require.Equal(testInstance, parentDirectory, filepath.Dir(workspace.Path()))
	require.Equal(testInstance, filepath.Join(workspace.Path(), "bwa"), workspace.PathFor("bwa"))

	require.NoError(testInstance, os.MkdirAll(workspace.PathFor("bwa"), 0o755))
	require.NoError(testInstance, workspace.Release())
	require.NoDirExists(testInstance, workspace.Path())
	require.NoError(testInstance, workspace.Release())
}
