// Package toolshed reads repository metadata from a Galaxy Tool Shed registry.
//
// Client lists the repositories published by one owner over the registry's JSON
// API, retrying transient transport and server failures, and derives the
// Mercurial clone location of each repository.
package toolshed
