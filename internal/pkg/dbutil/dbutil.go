package dbutil

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Rebind turns gendry's MySQL flavoured output into a Postgres statement:
// "LIMIT ?,?" becomes "LIMIT ? OFFSET ?" and placeholders become $n.
func Rebind(query string, args []interface{}) (string, []interface{}) {
	if loc := limitRegex.FindStringIndex(query); loc != nil {
		n := strings.Count(query[:loc[0]], "?")
		if n+1 < len(args) {
			args[n], args[n+1] = args[n+1], args[n]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func Select(table string, where map[string]interface{}, fields []string) (string, []interface{}, error) {
	query, args, err := builder.BuildSelect(table, where, fields)
	if err != nil {
		return "", nil, fmt.Errorf("build select %s: %w", table, err)
	}
	query, args = Rebind(query, args)
	return query, args, nil
}

// Upsert inserts rows and overwrites every non-key column on key conflict.
// All rows must carry the same columns.
func Upsert(table, key string, rows []map[string]interface{}) (string, []interface{}, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("build upsert %s: no rows", table)
	}
	query, args, err := builder.BuildInsert(table, rows)
	if err != nil {
		return "", nil, fmt.Errorf("build upsert %s: %w", table, err)
	}
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		if col != key {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", key)
	} else {
		sets := make([]string, 0, len(cols))
		sort.Strings(cols)
		for _, col := range cols {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
	}
	query, args = Rebind(query, args)
	return query, args, nil
}
