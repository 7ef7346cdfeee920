package session

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrUnexpectedResult = errors.New("unexpected result shape")

// Mappings reads every row into a map keyed by lower-cased column name and
// closes rows.
func Mappings(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for i, c := range cols {
		cols[i] = strings.ToLower(c)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			m[c] = values[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// One reads exactly one row. Zero or several rows are ErrUnexpectedResult.
func One(rows *sql.Rows) (map[string]any, error) {
	all, err := Mappings(rows)
	if err != nil {
		return nil, err
	}
	if len(all) != 1 {
		return nil, fmt.Errorf("%w: %d rows", ErrUnexpectedResult, len(all))
	}
	return all[0], nil
}

// Scalar reads the single value of a one-row, one-column result.
func Scalar(rows *sql.Rows) (any, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	if len(cols) != 1 {
		rows.Close()
		return nil, fmt.Errorf("%w: %d columns", ErrUnexpectedResult, len(cols))
	}
	m, err := One(rows)
	if err != nil {
		return nil, err
	}
	return m[strings.ToLower(cols[0])], nil
}
