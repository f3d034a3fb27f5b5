package database

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// ConvertPlaceholders converts PostgreSQL placeholders ($1, $2) to the ?
// form used by MySQL and SQLite. Queries are written in PostgreSQL format
// throughout the repositories and converted here for the active driver.
func ConvertPlaceholders(query string) string {
	if IsPostgres() {
		return query
	}
	for _, placeholder := range placeholderPattern.FindAllString(query, -1) {
		query = strings.Replace(query, placeholder, "?", 1)
	}
	query = strings.ReplaceAll(query, " ILIKE ", " LIKE ")
	query = strings.ReplaceAll(query, " ilike ", " LIKE ")
	return query
}
