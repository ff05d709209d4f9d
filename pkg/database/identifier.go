package database

import "strings"

// Table and column names cannot be bound as query parameters, so everything the
// branch engine interpolates into SQL text must pass through SafeIdentifier.
// This is the only place in the codebase allowed to build identifier text.

// SafeIdentifier strips every character that is not legal in an unquoted MySQL
// identifier. The result is safe to interpolate between backticks.
func SafeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QuoteIdentifier sanitizes name and wraps it in backticks.
func QuoteIdentifier(name string) string {
	return "`" + SafeIdentifier(name) + "`"
}

// QuoteQualified sanitizes a database and object name pair and renders
// `database`.`object`.
func QuoteQualified(database, name string) string {
	return QuoteIdentifier(database) + "." + QuoteIdentifier(name)
}
