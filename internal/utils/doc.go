// Package utils exposes reusable helpers consumed by the shed2git commands.
//
// It houses ConfigurationLoader and LoggerFactory, which integrate Viper,
// environment variables, and zap logging for the CLI, plus a typed accessor for
// values carried on command contexts.
package utils
