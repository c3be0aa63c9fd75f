package classification

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/juju/collections/set"

	"github.com/temirov/shed2git/internal/toolshed"
)

const (
	dataManagerNameMarkerConstant      = "data_manager"
	datatypeNameMarkerConstant         = "datatype"
	duplicateMembershipErrorTemplate   = "repository %q belongs to multiple collections: %s"
	duplicateMembershipJoinSeparator   = ", "
	emptyCollectionNameMessageConstant = "collection names must be non-empty"
	emptyCollectionMemberErrorTemplate = "collection %q lists an empty repository name"
	unsafeNameCharactersConstant       = "/\\\x00"
)

// ErrEmptyCollectionName indicates a policy definition with a blank collection key.
var ErrEmptyCollectionName = errors.New(emptyCollectionNameMessageConstant)

// Disposition states what the migration does with a repository.
type Disposition int

// Dispositions produced by Classify.
const (
	DispositionImport Disposition = iota
	DispositionExcluded
	DispositionUnsupportedType
	DispositionUnsafeName
)

// String renders the disposition for logs.
func (disposition Disposition) String() string {
	switch disposition {
	case DispositionImport:
		return "import"
	case DispositionExcluded:
		return "excluded"
	case DispositionUnsupportedType:
		return "unsupported_type"
	case DispositionUnsafeName:
		return "unsafe_name"
	default:
		return "unknown"
	}
}

// Category is a top-level directory of the consolidated repository.
type Category string

// Categories of the consolidated layout.
const (
	CategoryTools          Category = Category("tools")
	CategoryToolCollection Category = Category("tool_collections")
	CategorySuites         Category = Category("suites")
	CategoryPackages       Category = Category("packages")
	CategoryDatatypes      Category = Category("datatypes")
	CategoryDataManagers   Category = Category("data_managers")
	CategoryVisualisations Category = Category("visualisations")
)

// LayoutCategories lists every top-level directory created when the consolidated repository is initialized.
func LayoutCategories() []Category {
	return []Category{
		CategoryTools,
		CategoryToolCollection,
		CategorySuites,
		CategoryPackages,
		CategoryDatatypes,
		CategoryDataManagers,
		CategoryVisualisations,
	}
}

// Placement is the classification outcome for one repository.
type Placement struct {
	RepositoryName string
	Disposition    Disposition
	Category       Category
	Collection     string
}

// Destination returns the slash-separated directory the repository is imported into.
// It is empty unless the disposition is DispositionImport.
func (placement Placement) Destination() string {
	if placement.Disposition != DispositionImport {
		return ""
	}
	if placement.Category == CategoryToolCollection {
		return path.Join(string(placement.Category), placement.Collection, placement.RepositoryName)
	}
	return path.Join(string(placement.Category), placement.RepositoryName)
}

// DuplicateMembershipError reports a repository listed in more than one collection.
type DuplicateMembershipError struct {
	RepositoryName string
	Collections    []string
}

// Error describes the conflicting collections.
func (membershipError DuplicateMembershipError) Error() string {
	return fmt.Sprintf(duplicateMembershipErrorTemplate, membershipError.RepositoryName, strings.Join(membershipError.Collections, duplicateMembershipJoinSeparator))
}

// Policy classifies repositories. It is safe for concurrent use because it is never mutated after NewPolicy.
type Policy struct {
	collectionByMember map[string]string
	excluded           set.Strings
	legacySuites       set.Strings
}

// NewPolicy validates the definition and builds the member index.
func NewPolicy(definition PolicyDefinition) (*Policy, error) {
	collectionNames := make([]string, 0, len(definition.Collections))
	for collectionName := range definition.Collections {
		collectionNames = append(collectionNames, collectionName)
	}
	slices.Sort(collectionNames)

	collectionByMember := make(map[string]string)
	for _, collectionName := range collectionNames {
		if len(strings.TrimSpace(collectionName)) == 0 {
			return nil, ErrEmptyCollectionName
		}
		for _, memberName := range definition.Collections[collectionName] {
			trimmedMember := strings.TrimSpace(memberName)
			if len(trimmedMember) == 0 {
				return nil, fmt.Errorf(emptyCollectionMemberErrorTemplate, collectionName)
			}
			if existingCollection, exists := collectionByMember[trimmedMember]; exists && existingCollection != collectionName {
				return nil, DuplicateMembershipError{
					RepositoryName: trimmedMember,
					Collections:    []string{existingCollection, collectionName},
				}
			}
			collectionByMember[trimmedMember] = collectionName
		}
	}

	return &Policy{
		collectionByMember: collectionByMember,
		excluded:           set.NewStrings(trimAll(definition.Excluded)...),
		legacySuites:       set.NewStrings(trimAll(definition.LegacySuites)...),
	}, nil
}

// Classify places a repository. Rules apply in order: exclusion, dependency definitions, suites,
// then the name-based rules for unrestricted repositories.
func (policy *Policy) Classify(repository toolshed.Repository) Placement {
	placement := Placement{RepositoryName: repository.Name, Disposition: DispositionImport}

	if !IsSafeRepositoryName(repository.Name) {
		placement.Disposition = DispositionUnsafeName
		return placement
	}

	if policy.excluded.Contains(repository.Name) {
		placement.Disposition = DispositionExcluded
		return placement
	}

	switch {
	case repository.Type == toolshed.RepositoryTypeToolDependencyDefinition:
		placement.Category = CategoryPackages
	case repository.Type == toolshed.RepositoryTypeSuiteDefinition || policy.legacySuites.Contains(repository.Name):
		placement.Category = CategorySuites
	case repository.Type == toolshed.RepositoryTypeUnrestricted:
		policy.placeUnrestricted(&placement)
	default:
		placement.Disposition = DispositionUnsupportedType
	}

	return placement
}

// IsSafeRepositoryName reports whether a registry name can be used as a single path component.
// Names with separators, NUL bytes, "." or ".." would escape the scratch or category directories.
func IsSafeRepositoryName(repositoryName string) bool {
	if len(repositoryName) == 0 || repositoryName == "." || repositoryName == ".." {
		return false
	}
	if strings.ContainsAny(repositoryName, unsafeNameCharactersConstant) {
		return false
	}
	return filepath.IsLocal(repositoryName)
}

// CollectionOf reports the collection a repository name belongs to.
func (policy *Policy) CollectionOf(repositoryName string) (string, bool) {
	collectionName, exists := policy.collectionByMember[repositoryName]
	return collectionName, exists
}

// IsExcluded reports whether the repository name is never migrated.
func (policy *Policy) IsExcluded(repositoryName string) bool {
	return policy.excluded.Contains(repositoryName)
}

func (policy *Policy) placeUnrestricted(placement *Placement) {
	repositoryName := placement.RepositoryName
	switch {
	case strings.Contains(repositoryName, dataManagerNameMarkerConstant):
		placement.Category = CategoryDataManagers
	case strings.Contains(repositoryName, datatypeNameMarkerConstant):
		placement.Category = CategoryDatatypes
	default:
		if collectionName, isMember := policy.collectionByMember[repositoryName]; isMember {
			placement.Category = CategoryToolCollection
			placement.Collection = collectionName
			return
		}
		placement.Category = CategoryTools
	}
}

func trimAll(values []string) []string {
	trimmedValues := make([]string, 0, len(values))
	for _, value := range values {
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedValue) > 0 {
			trimmedValues = append(trimmedValues, trimmedValue)
		}
	}
	return trimmedValues
}
