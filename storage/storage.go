// Package storage provides Storage implementations for user records: an
// in-memory store, an ORM-backed store (GormStorage) and a query-builder
// store (SQLStorage), the latter two over SQLite or PostgreSQL.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/CreativeUnicorns/userrecords"
)

// sqlOpenFunc is a package-level variable that can be overridden for testing.
var sqlOpenFunc = sql.Open

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var userColumns = []string{"id", "name", "age", "email", "is_admin", "created_at", "updated_at"}

var preferenceColumns = []string{"id", "email_updates", "user_id"}

func newID() string {
	return uuid.NewString()
}

// sqliteDSN enables foreign keys and case-sensitive LIKE on every connection.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=1&_cslike=1"
}

// translateError maps driver constraint errors onto the package sentinels.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, userrecords.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, userrecords.ErrAlreadyExists, err)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w: %w", op, userrecords.ErrRelation, err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %w", op, userrecords.ErrAlreadyExists, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w: %w", op, userrecords.ErrRelation, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// userCondition renders a UserWhere with '?' placeholders. It returns nil when
// the filter matches every row.
func userCondition(w *userrecords.UserWhere) squirrel.Sqlizer {
	if w == nil {
		return nil
	}

	var and squirrel.And
	if w.ID != "" {
		and = append(and, squirrel.Eq{"id": w.ID})
	}
	and = appendStringFilter(and, "name", w.Name)
	and = appendStringFilter(and, "email", w.Email)
	if w.Age != nil {
		and = append(and, squirrel.Eq{"age": *w.Age})
	}
	if w.IsAdmin != nil {
		and = append(and, squirrel.Eq{"is_admin": *w.IsAdmin})
	}
	for i := range w.And {
		if cond := userCondition(&w.And[i]); cond != nil {
			and = append(and, cond)
		}
	}
	if len(w.Or) > 0 {
		var or squirrel.Or
		for i := range w.Or {
			cond := userCondition(&w.Or[i])
			if cond == nil {
				// an empty branch matches everything, so the whole OR does
				cond = squirrel.Expr("1=1")
			}
			or = append(or, cond)
		}
		and = append(and, or)
	}

	if len(and) == 0 {
		return nil
	}
	return and
}

func appendStringFilter(and squirrel.And, column string, f *userrecords.StringFilter) squirrel.And {
	if f == nil {
		return and
	}

	expr := column
	if f.Insensitive {
		expr = "LOWER(" + column + ")"
	}
	fold := f.Fold

	if f.Equals != nil {
		and = append(and, squirrel.Expr(expr+" = ?", fold(*f.Equals)))
	}
	if f.StartsWith != "" {
		and = append(and, squirrel.Expr(expr+` LIKE ? ESCAPE '\'`, escapeLike(fold(f.StartsWith))+"%"))
	}
	if f.EndsWith != "" {
		and = append(and, squirrel.Expr(expr+` LIKE ? ESCAPE '\'`, "%"+escapeLike(fold(f.EndsWith))))
	}
	if f.Contains != "" {
		and = append(and, squirrel.Expr(expr+` LIKE ? ESCAPE '\'`, "%"+escapeLike(fold(f.Contains))+"%"))
	}
	return and
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func preferenceCondition(w *userrecords.PreferenceWhere) squirrel.Sqlizer {
	if w == nil {
		return nil
	}
	eq := squirrel.Eq{}
	if w.ID != "" {
		eq["id"] = w.ID
	}
	if w.UserID != "" {
		eq["user_id"] = w.UserID
	}
	if w.EmailUpdates != nil {
		eq["email_updates"] = *w.EmailUpdates
	}
	if len(eq) == 0 {
		return nil
	}
	return eq
}

func orderClause(o userrecords.OrderBy) string {
	if o.Desc {
		return string(o.Field) + " DESC"
	}
	return string(o.Field) + " ASC"
}

// defaultOrder keeps pages stable when the caller gave no order: rows come
// back in insertion order.
var defaultOrder = []string{"created_at ASC", "id ASC"}

// orderClauses returns the ORDER BY terms for q.
func orderClauses(q *userrecords.UserQuery) []string {
	if len(q.OrderBy) == 0 {
		if q.Take > 0 || q.Skip > 0 {
			return defaultOrder
		}
		return nil
	}
	out := make([]string, len(q.OrderBy))
	for i, o := range q.OrderBy {
		out[i] = orderClause(o)
	}
	return out
}

// pagedInSQL reports whether skip and take can be pushed into the query.
// Distinct is evaluated in Go, so it needs the full ordered result first.
func pagedInSQL(q *userrecords.UserQuery) bool {
	return len(q.Distinct) == 0 && q.Take > 0
}
