package consolidation_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errInjectedFailure = errors.New("injected failure")

type fakeVersionControl struct {
	calls         []string
	failOperation string
	cloneFiles    map[string]string
}

func (fake *fakeVersionControl) record(operation string, arguments ...string) error {
	fake.calls = append(fake.calls, operation+" "+strings.Join(arguments, " "))
	if operation == fake.failOperation {
		return errInjectedFailure
	}
	return nil
}

func (fake *fakeVersionControl) InitializeRepository(_ context.Context, repositoryPath string, mainBranch string) error {
	return fake.record("init", repositoryPath, mainBranch)
}

func (fake *fakeVersionControl) StageAll(_ context.Context, repositoryPath string) error {
	return fake.record("stage_all", repositoryPath)
}

func (fake *fakeVersionControl) StagePath(_ context.Context, repositoryPath string, relativePath string) error {
	return fake.record("stage_path", repositoryPath, relativePath)
}

func (fake *fakeVersionControl) Commit(_ context.Context, repositoryPath string, message string) error {
	return fake.record("commit", repositoryPath, message)
}

func (fake *fakeVersionControl) CreateOrphanBranch(_ context.Context, repositoryPath string, branchName string) error {
	return fake.record("orphan", repositoryPath, branchName)
}

func (fake *fakeVersionControl) CloneHistory(_ context.Context, sourceURL string, destinationPath string) error {
	if recordError := fake.record("clone", sourceURL, destinationPath); recordError != nil {
		return recordError
	}
	for relativePath, content := range fake.cloneFiles {
		filePath := filepath.Join(destinationPath, filepath.FromSlash(relativePath))
		if mkdirError := os.MkdirAll(filepath.Dir(filePath), 0o755); mkdirError != nil {
			return mkdirError
		}
		if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
			return fmt.Errorf("write clone file: %w", writeError)
		}
	}
	return nil
}

func (fake *fakeVersionControl) PullHistory(_ context.Context, repositoryPath string, mercurialClonePath string) error {
	return fake.record("pull", repositoryPath, mercurialClonePath)
}

func (fake *fakeVersionControl) RelocateHistory(_ context.Context, repositoryPath string, branchName string, destination string) error {
	return fake.record("relocate", repositoryPath, branchName, destination)
}

func (fake *fakeVersionControl) CheckoutBranch(_ context.Context, repositoryPath string, branchName string) error {
	return fake.record("checkout", repositoryPath, branchName)
}

func (fake *fakeVersionControl) MergeBranch(_ context.Context, repositoryPath string, branchName string, message string) error {
	return fake.record("merge", repositoryPath, branchName, message)
}

func (fake *fakeVersionControl) DeleteBranch(_ context.Context, repositoryPath string, branchName string) error {
	return fake.record("delete_branch", repositoryPath, branchName)
}
