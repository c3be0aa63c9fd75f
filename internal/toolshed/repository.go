package toolshed

// RepositoryType is the registry-assigned category of a repository.
type RepositoryType string

// Repository types published by the Tool Shed.
const (
	RepositoryTypeUnrestricted             RepositoryType = RepositoryType("unrestricted")
	RepositoryTypeToolDependencyDefinition RepositoryType = RepositoryType("tool_dependency_definition")
	RepositoryTypeSuiteDefinition          RepositoryType = RepositoryType("repository_suite_definition")
)

// Repository is one migration unit as described by the registry.
type Repository struct {
	Name        string         `json:"name"`
	Owner       string         `json:"owner"`
	Type        RepositoryType `json:"type"`
	Identifier  string         `json:"id"`
	Description string         `json:"description"`
	Deleted     bool           `json:"deleted"`
}
