// Package consolidation builds the consolidated git repository: it lays out the target working copy,
// manages the scratch workspace for Mercurial clones, and imports each classified repository either with
// its full history or as a single snapshot commit.
package consolidation
