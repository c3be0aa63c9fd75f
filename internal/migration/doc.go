// Package migration drives the Tool Shed to git consolidation.
//
// Service lists an owner's repositories and builds the consolidated repository by classifying each
// repository and importing those that classification keeps. ListCommandBuilder and BuildCommandBuilder
// expose the two operations as cobra commands and wire the registry client, classification policy,
// version control client and importer from configuration.
package migration
