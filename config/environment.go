package config

import (
	"os"
	"strings"
)

const appEnvVar = "APP_ENV"

const (
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

// Common misspellings and short forms seen in deployment manifests are
// normalised to their canonical environment name.
var environmentAliases = map[string]string{
	"prod":        environmentProduction,
	"producation": environmentProduction,
	"stag":        environmentStaging,
	"stagging":    environmentStaging,
}

// getAppEnvironment reads APP_ENV, lower-cases it and resolves aliases.
// An unset variable means development.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath selects the environment specific configuration
// file (config.production.yml, config.staging.yml) when the caller asked
// for the default path and such a file is mapped for the current
// environment. An explicit non-default path always wins.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}

	env := getAppEnvironment()
	if envPath, ok := envPaths[env]; ok {
		if path == defaultPath || path == envPath {
			return envPath
		}
	}

	return path
}

// AppEnvironment returns the normalised application environment so the
// rest of the process logs and branches on one consistent identifier.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether env is an environment that trades
// with real credentials. Production and staging are expected to publish
// metrics; anything else is treated as a local run.
func IsProductionLike(env string) bool {
	switch env {
	case environmentProduction, environmentStaging:
		return true
	default:
		return false
	}
}
