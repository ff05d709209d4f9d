package branches

import (
	"strings"
)

// exclusionSet is the normalized set of entity types that never leave their
// environment: not copied into branches, not merged back into production.
type exclusionSet map[string]struct{}

func newExclusionSet(entityTypes []string) exclusionSet {
	set := make(exclusionSet, len(entityTypes))
	for _, entityType := range entityTypes {
		entityType = strings.ToLower(strings.TrimSpace(entityType))
		if entityType != "" {
			set[entityType] = struct{}{}
		}
	}
	return set
}

func (s exclusionSet) Contains(entityType string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(entityType))]
	return ok
}

// isSkipCopyTable reports whether a table is cloned schema-only when creating
// a branch: the change log itself, log/archive-style tables, and the
// configured deny-list.
func isSkipCopyTable(tableName string, denyList []string) bool {
	name := strings.ToLower(tableName)

	for _, denied := range denyList {
		if name == strings.ToLower(denied) {
			return true
		}
	}

	if strings.HasPrefix(name, "log_") || strings.HasSuffix(name, "_log") {
		return true
	}
	if strings.HasSuffix(name, "archive") {
		return true
	}
	return false
}
