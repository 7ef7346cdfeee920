// Package pgcheck parses rendered statements with the Postgres parser so a
// malformed query is rejected before it reaches the server.
package pgcheck

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmpty    = errors.New("no statement")
	ErrMultiple = errors.New("more than one statement")
)

// Kind names the top-level statement type.
type Kind string

const (
	Select Kind = "select"
	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
	Other  Kind = "other"
)

// Classify parses sql, which must hold exactly one statement, and reports
// its kind. Dollar placeholders parse; qmark and format ones do not.
func Classify(sql string) (Kind, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	stmts := tree.GetStmts()
	switch {
	case len(stmts) == 0:
		return "", ErrEmpty
	case len(stmts) > 1:
		return "", fmt.Errorf("%w: %d", ErrMultiple, len(stmts))
	}

	n := stmts[0].GetStmt()
	switch {
	case n.GetSelectStmt() != nil:
		return Select, nil
	case n.GetInsertStmt() != nil:
		return Insert, nil
	case n.GetUpdateStmt() != nil:
		return Update, nil
	case n.GetDeleteStmt() != nil:
		return Delete, nil
	}
	return Other, nil
}

// Validate is Classify for callers that only care whether sql parses.
// It matches the session validator signature.
func Validate(sql string) error {
	_, err := Classify(sql)
	return err
}

// Allow returns a validator that also rejects statements of any kind not
// listed.
func Allow(kinds ...Kind) func(string) error {
	ok := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		ok[k] = true
	}
	return func(sql string) error {
		k, err := Classify(sql)
		if err != nil {
			return err
		}
		if !ok[k] {
			return fmt.Errorf("%s statements are not allowed", k)
		}
		return nil
	}
}
