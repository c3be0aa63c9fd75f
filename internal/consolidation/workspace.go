package consolidation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	workspacePatternConstant             = "shed2git-"
	workspaceCreateErrorTemplateConstant = "unable to create scratch workspace in %s: %w"
	workspaceRemoveErrorTemplateConstant = "unable to remove scratch workspace %s: %w"
)

// Workspace is a scratch directory owned by one run.
type Workspace struct {
	path        string
	releaseOnce sync.Once
	releaseErr  error
}

// AcquireWorkspace creates a fresh scratch directory under parentDirectory, or under the system
// temporary directory when parentDirectory is empty.
func AcquireWorkspace(parentDirectory string) (*Workspace, error) {
	if len(parentDirectory) > 0 {
		if mkdirError := os.MkdirAll(parentDirectory, 0o755); mkdirError != nil {
			return nil, fmt.Errorf(workspaceCreateErrorTemplateConstant, parentDirectory, mkdirError)
		}
	}
	workspacePath, createError := os.MkdirTemp(parentDirectory, workspacePatternConstant)
	if createError != nil {
		return nil, fmt.Errorf(workspaceCreateErrorTemplateConstant, parentDirectory, createError)
	}
	return &Workspace{path: workspacePath}, nil
}

// Path returns the workspace root.
func (workspace *Workspace) Path() string {
	return workspace.path
}

// PathFor returns the scratch location reserved for a repository.
func (workspace *Workspace) PathFor(repositoryName string) string {
	return filepath.Join(workspace.path, repositoryName)
}

// Release removes the workspace and everything under it. Repeated calls return the first result.
func (workspace *Workspace) Release() error {
	workspace.releaseOnce.Do(func() {
		if removeError := os.RemoveAll(workspace.path); removeError != nil {
			workspace.releaseErr = fmt.Errorf(workspaceRemoveErrorTemplateConstant, workspace.path, removeError)
		}
	})
	return workspace.releaseErr
}
