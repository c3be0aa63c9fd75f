package vcs

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	indexListingCommandConstant      = "git ls-files -s"
	indexUpdateCommandConstant       = `GIT_INDEX_FILE="$GIT_INDEX_FILE.new" git update-index --index-info`
	indexReplaceCommandConstant      = `if [ -f "$GIT_INDEX_FILE.new" ]; then mv "$GIT_INDEX_FILE.new" "$GIT_INDEX_FILE"; fi`
	streamEditorCommandConstant      = "sed"
	relocationExpressionPrefix       = "s|\\t\"*|&"
	relocationExpressionSuffix       = "/|"
	pipelineSeparatorConstant        = " | "
	sequenceSeparatorConstant        = " && "
	destinationPathSeparatorConstant = "/"
)

var relocationDestinationEscaper = strings.NewReplacer(`\`, `\\`, `&`, `\&`, `|`, `\|`)

// BuildRelocationIndexFilter returns the git filter-branch index filter that prefixes every
// index entry with destination. The destination is escaped for sed and quoted for sh.
func BuildRelocationIndexFilter(destination string) string {
	normalizedDestination := strings.Trim(strings.TrimSpace(destination), destinationPathSeparatorConstant)
	relocationExpression := relocationExpressionPrefix + relocationDestinationEscaper.Replace(normalizedDestination) + relocationExpressionSuffix

	pipeline := strings.Join([]string{
		indexListingCommandConstant,
		shellquote.Join(streamEditorCommandConstant, relocationExpression),
		indexUpdateCommandConstant,
	}, pipelineSeparatorConstant)

	return pipeline + sequenceSeparatorConstant + indexReplaceCommandConstant
}
