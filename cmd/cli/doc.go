// Package cli constructs the shed2git command-line interface: the cobra root command with its
// configuration and logging flags, and the list and build subcommands.
package cli
