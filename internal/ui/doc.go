// Package ui renders shell command lifecycle events for people watching a migration run.
package ui
