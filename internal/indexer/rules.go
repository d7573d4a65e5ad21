// Package indexer computes the per-repo index: fingerprints of
// governance-relevant files at a resolved ref, plus entrypoints, API
// surface, migrations, hotspots, and build commands. All discovery is by
// content-agnostic path rules; file bytes are only read to hash them.
package indexer

import (
	"path"
	"regexp"
	"strings"
)

// Fingerprint-worthy exact file names (any directory).
var fingerprintNames = map[string]bool{
	"package.json":       true,
	"package-lock.json":  true,
	"yarn.lock":          true,
	"pnpm-lock.yaml":     true,
	"go.mod":             true,
	"go.sum":             true,
	"Cargo.toml":         true,
	"Cargo.lock":         true,
	"pyproject.toml":     true,
	"poetry.lock":        true,
	"requirements.txt":   true,
	"Gemfile":            true,
	"Gemfile.lock":       true,
	"composer.json":      true,
	"composer.lock":      true,
	"pom.xml":            true,
	"build.gradle":       true,
	"build.gradle.kts":   true,
	"Dockerfile":         true,
	"docker-compose.yml": true,
	"docker-compose.yaml": true,
	".gitlab-ci.yml":     true,
	"Jenkinsfile":        true,
}

// Directory prefixes whose entire subtree is fingerprint-worthy.
var fingerprintDirPrefixes = []string{
	"helm/",
	"k8s/",
	"kubernetes/",
}

// ciWorkflowPattern matches CI workflow definitions.
var ciWorkflowPattern = regexp.MustCompile(`^\.github/workflows/[^/]+\.ya?ml$`)

// migrationPattern matches migration files of several ecosystems.
var migrationPattern = regexp.MustCompile(`(^|/)(migrations|db/migrate|alembic/versions|prisma/migrations)/`)

// contractExtensions mark API contract files.
var contractExtensions = map[string]bool{
	".proto":   true,
	".graphql": true,
	".gql":     true,
}

// openapiPattern matches OpenAPI and Swagger documents by name.
var openapiPattern = regexp.MustCompile(`(^|/)(openapi|swagger)[^/]*\.(json|ya?ml)$`)

// entrypointPatterns match canonical program entrypoints.
var entrypointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^main\.go$`),
	regexp.MustCompile(`^cmd/[^/]+/main\.go$`),
	regexp.MustCompile(`^(src/)?(index|main|server|app)\.(js|ts|mjs|cjs)$`),
	regexp.MustCompile(`^(src/)?(main|app|manage|wsgi|asgi)\.py$`),
	regexp.MustCompile(`^src/main\.rs$`),
	regexp.MustCompile(`^src/main/java/.+/(Main|Application)\.java$`),
}

// routesPattern matches route and controller implementation paths.
var routesPattern = regexp.MustCompile(`(^|/)(routes?|controllers?|handlers?|endpoints?)(/|\.)`)

// eventsPattern matches event and topic implementation paths.
var eventsPattern = regexp.MustCompile(`(^|/)(events?|topics?|consumers?|producers?|subscribers?|publishers?)(/|\.)`)

// lockfileNames identifies lockfiles among fingerprinted paths.
var lockfileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	"Cargo.lock":        true,
	"poetry.lock":       true,
	"Gemfile.lock":      true,
	"composer.lock":     true,
}

// IsFingerprintWorthy reports whether a repo-relative path is hashed into
// the fingerprint set. The rule list is fixed; consumers may only cite paths
// accepted here (or explicit evidence files).
func IsFingerprintWorthy(relPath string) bool {
	base := path.Base(relPath)

	if fingerprintNames[base] {
		return true
	}

	for _, prefix := range fingerprintDirPrefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}

	if ciWorkflowPattern.MatchString(relPath) {
		return true
	}

	if migrationPattern.MatchString(relPath) {
		return true
	}

	if contractExtensions[path.Ext(relPath)] {
		return true
	}

	return openapiPattern.MatchString(relPath)
}

// IsEntrypoint reports whether a path is a canonical program entrypoint.
func IsEntrypoint(relPath string) bool {
	for _, pattern := range entrypointPatterns {
		if pattern.MatchString(relPath) {
			return true
		}
	}

	return false
}

// IsContractFile reports whether a path carries an API contract.
func IsContractFile(relPath string) bool {
	if contractExtensions[path.Ext(relPath)] {
		return true
	}

	return openapiPattern.MatchString(relPath)
}

// IsOpenAPIFile reports whether a path is an OpenAPI or Swagger document.
func IsOpenAPIFile(relPath string) bool {
	return openapiPattern.MatchString(relPath)
}

// IsRouteControllerFile reports whether a path implements routes or
// controllers.
func IsRouteControllerFile(relPath string) bool {
	return routesPattern.MatchString(relPath)
}

// IsEventTopicFile reports whether a path implements events or topics.
func IsEventTopicFile(relPath string) bool {
	return eventsPattern.MatchString(relPath)
}

// IsMigrationFile reports whether a path belongs to a migrations tree.
func IsMigrationFile(relPath string) bool {
	return migrationPattern.MatchString(relPath)
}

// IsCIWorkflow reports whether a path is a CI workflow definition.
func IsCIWorkflow(relPath string) bool {
	return ciWorkflowPattern.MatchString(relPath) ||
		path.Base(relPath) == ".gitlab-ci.yml" || path.Base(relPath) == "Jenkinsfile"
}

// IsLockfile reports whether a path is a dependency lockfile.
func IsLockfile(relPath string) bool {
	return lockfileNames[path.Base(relPath)]
}

// IsInfraFile reports whether a path is deployment or container
// infrastructure.
func IsInfraFile(relPath string) bool {
	base := path.Base(relPath)
	if base == "Dockerfile" || base == "docker-compose.yml" || base == "docker-compose.yaml" {
		return true
	}

	for _, prefix := range fingerprintDirPrefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}

	return IsCIWorkflow(relPath)
}

// FingerprintCategory names the governance category of a fingerprinted path.
// The empty string means uncategorized.
func FingerprintCategory(relPath string) string {
	switch {
	case IsLockfile(relPath):
		return "lockfile"
	case path.Base(relPath) == "package.json", path.Base(relPath) == "go.mod",
		path.Base(relPath) == "Cargo.toml", path.Base(relPath) == "pyproject.toml",
		path.Base(relPath) == "pom.xml", path.Base(relPath) == "Gemfile",
		path.Base(relPath) == "composer.json":
		return "manifest"
	case IsContractFile(relPath):
		return "contract"
	case IsMigrationFile(relPath):
		return "migration"
	case IsInfraFile(relPath):
		return "infra"
	default:
		return ""
	}
}
