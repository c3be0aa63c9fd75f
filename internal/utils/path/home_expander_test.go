package pathutils

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHomeExpanderExpand(testInstance *testing.T) {
	expander := NewHomeExpanderWithProvider(func() (string, error) {
		return "/home/curator", nil
	})

	testCases := []struct {
		name         string
		candidate    string
		expectedPath string
	}{
		{name: "empty", candidate: "", expectedPath: ""},
		{name: "tilde_only", candidate: "~", expectedPath: "/home/curator"},
		{name: "tilde_prefix", candidate: "~/migrations/repo", expectedPath: "/home/curator/migrations/repo"},
		{name: "absolute", candidate: "/srv/repo", expectedPath: "/srv/repo"},
		{name: "relative", candidate: "repo", expectedPath: "repo"},
		{name: "named_user", candidate: "~other/repo", expectedPath: "~other/repo"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.candidate))
		})
	}
}

func TestHomeExpanderKeepsPathWhenHomeUnavailable(testInstance *testing.T) {
	expander := NewHomeExpanderWithProvider(func() (string, error) {
		return "", errors.New("no home")
	})

	require.Equal(testInstance, "~/repo", expander.Expand("~/repo"))
}

func TestHomeExpanderExpandAbsolute(testInstance *testing.T) {
	expander := NewHomeExpanderWithProvider(func() (string, error) {
		return "/home/curator", nil
	})

	expandedPath, expandError := expander.ExpandAbsolute("~/repo/../consolidated")
	require.NoError(testInstance, expandError)
	require.Equal(testInstance, "/home/curator/consolidated", expandedPath)

	relativeExpanded, relativeError := expander.ExpandAbsolute("repo")
	require.NoError(testInstance, relativeError)
	require.True(testInstance, filepath.IsAbs(relativeExpanded))

	emptyExpanded, emptyError := expander.ExpandAbsolute("  ")
	require.NoError(testInstance, emptyError)
	require.Empty(testInstance, emptyExpanded)
}

func TestHomeExpanderSubstitutesEnvironmentReferences(testInstance *testing.T) {
	environment := map[string]string{"SCRATCH": "/scratch/shed2git"}
	expander := NewHomeExpanderWithProvider(func() (string, error) {
		return "/home/curator", nil
	}).WithEnvironmentLookup(func(name string) (string, bool) {
		value, found := environment[name]
		return value, found
	})

	require.Equal(testInstance, "/scratch/shed2git/clones", expander.Expand("$SCRATCH/clones"))
	require.Equal(testInstance, "/home/curator/$UNSET", expander.Expand("~/${UNSET}"))
	require.Equal(testInstance, "$UNSET/clones", expander.Expand("$UNSET/clones"))
}
