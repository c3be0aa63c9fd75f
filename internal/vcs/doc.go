// Package vcs exposes the git and Mercurial operations the consolidation needs as one capability
// interface, executed through execshell so every invocation is logged and cancellable.
package vcs
