package branches

import (
	"strings"
)

// maxDatabaseNameLength is the MySQL identifier limit.
const maxDatabaseNameLength = 64

// sanitizeBranchName lowercases a user-supplied branch name and strips
// everything that is not safe in a database name or subdomain label.
func sanitizeBranchName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.':
			b.WriteRune('_')
		case r == '_':
			b.WriteRune('_')
			// path separators, quotes and anything else are dropped
		}
	}
	return strings.Trim(b.String(), "_")
}

// deriveDatabaseName derives the branch database name from the production
// database name and the sanitized branch name, capped at the MySQL limit.
func deriveDatabaseName(productionDatabase, branchName string) string {
	name := strings.ToLower(productionDatabase) + "_" + sanitizeBranchName(branchName)
	if len(name) > maxDatabaseNameLength {
		name = name[:maxDatabaseNameLength]
	}
	return strings.Trim(name, "_")
}

// deriveSubdomain derives the branch subdomain from the production subdomain.
func deriveSubdomain(productionSubdomain, branchName string) string {
	return strings.ToLower(productionSubdomain) + "_" + sanitizeBranchName(branchName)
}
