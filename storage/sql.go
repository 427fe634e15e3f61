package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/CreativeUnicorns/userrecords"
)

// SQLStorage implements the Storage interface with hand-built SQL.
// Statements are generated with squirrel and scanned with sqlx.
type SQLStorage struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
	// name prefixes error messages, "sqlite" or "postgres".
	name string
}

type userRecord struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Age       int       `db:"age"`
	Email     string    `db:"email"`
	IsAdmin   bool      `db:"is_admin"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r userRecord) toUser() *userrecords.User {
	return &userrecords.User{
		ID:        r.ID,
		Name:      r.Name,
		Age:       r.Age,
		Email:     r.Email,
		IsAdmin:   r.IsAdmin,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type preferenceRecord struct {
	ID           string `db:"id"`
	EmailUpdates bool   `db:"email_updates"`
	UserID       string `db:"user_id"`
}

func (r preferenceRecord) toPreference() *userrecords.UserPreference {
	return &userrecords.UserPreference{ID: r.ID, EmailUpdates: r.EmailUpdates, UserID: r.UserID}
}

// openSQLStorage connects through sqlOpenFunc, pings and runs the schema statements.
func openSQLStorage(name, driverName, dsn, schema string, format squirrel.PlaceholderFormat) (*SQLStorage, error) {
	db, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database connection: %w", name, err)
	}
	if driverName == driverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close() // Attempt to close if ping fails
		return nil, fmt.Errorf("%s: failed to ping database: %w", name, err)
	}

	storage := &SQLStorage{
		db:   sqlx.NewDb(db, driverName),
		sb:   squirrel.StatementBuilder.PlaceholderFormat(format),
		name: name,
	}
	if err := storage.migrate(schema); err != nil {
		db.Close() // Attempt to close if migration fails
		return nil, fmt.Errorf("%s: failed to run migrations: %w", name, err)
	}

	return storage, nil
}

func (s *SQLStorage) migrate(schema string) error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%s: failed to execute create table statement: %w", s.name, err)
	}
	return nil
}

// CreateUser inserts the user and its optional preference in one transaction.
func (s *SQLStorage) CreateUser(ctx context.Context, in *userrecords.CreateUserInput) (*userrecords.User, error) {
	now := time.Now().UTC()
	user := &userrecords.User{
		ID:        newID(),
		Name:      in.Name,
		Age:       in.Age,
		Email:     in.Email,
		IsAdmin:   in.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", s.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.sb.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Age, user.Email, user.IsAdmin, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build insert: %w", s.name, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, translateError(fmt.Sprintf("%s: failed to insert user %q", s.name, in.Email), err)
	}

	if in.Preference != nil {
		pref := &userrecords.UserPreference{ID: newID(), EmailUpdates: in.Preference.EmailUpdates, UserID: user.ID}
		query, args, err := s.sb.Insert("user_preferences").
			Columns(preferenceColumns...).
			Values(pref.ID, pref.EmailUpdates, pref.UserID).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to build insert: %w", s.name, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, translateError(fmt.Sprintf("%s: failed to insert preference for user %q", s.name, in.Email), err)
		}
		user.Preference = pref
	}

	if err := tx.Commit(); err != nil {
		return nil, translateError(s.name+": failed to commit user", err)
	}
	return user, nil
}

// FindUniqueUser returns the single user matching where, or userrecords.ErrNotFound.
func (s *SQLStorage) FindUniqueUser(ctx context.Context, where userrecords.UserUniqueWhere, includePreference bool) (*userrecords.User, error) {
	users, err := s.FindManyUsers(ctx, &userrecords.UserQuery{Where: where.Where(), Take: 1, IncludePreference: includePreference})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%s: user: %w", s.name, userrecords.ErrNotFound)
	}
	return users[0], nil
}

// FindManyUsers runs a filtered, ordered SELECT and loads preferences with a
// second query when asked to.
func (s *SQLStorage) FindManyUsers(ctx context.Context, q *userrecords.UserQuery) ([]*userrecords.User, error) {
	if q == nil {
		q = &userrecords.UserQuery{}
	}

	sel := s.sb.Select(userColumns...).From("users")
	if cond := userCondition(q.Where); cond != nil {
		sel = sel.Where(cond)
	}
	sel = sel.OrderBy(orderClauses(q)...)
	paged := pagedInSQL(q)
	if paged {
		sel = sel.Limit(uint64(q.Take))
		if q.Skip > 0 {
			sel = sel.Offset(uint64(q.Skip))
		}
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build user query: %w", s.name, err)
	}

	var records []userRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, translateError(s.name+": failed to query users", err)
	}

	users := make([]*userrecords.User, len(records))
	for i, r := range records {
		users[i] = r.toUser()
	}
	if !paged {
		users = userrecords.Page(userrecords.DistinctUsers(users, q.Distinct), q.Skip, q.Take)
	}

	if q.IncludePreference && len(users) > 0 {
		if err := s.attachPreferences(ctx, users); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *SQLStorage) attachPreferences(ctx context.Context, users []*userrecords.User) error {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	query, args, err := s.sb.Select(preferenceColumns...).
		From("user_preferences").
		Where(squirrel.Eq{"user_id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build preference query: %w", s.name, err)
	}

	var records []preferenceRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return translateError(s.name+": failed to query preferences", err)
	}

	byUser := make(map[string]*userrecords.UserPreference, len(records))
	for _, r := range records {
		byUser[r.UserID] = r.toPreference()
	}
	for _, u := range users {
		u.Preference = byUser[u.ID]
	}
	return nil
}

// DeleteManyUsers deletes the matching users. Their preferences go with them
// through ON DELETE CASCADE.
func (s *SQLStorage) DeleteManyUsers(ctx context.Context, where *userrecords.UserWhere) (int64, error) {
	del := s.sb.Delete("users")
	if cond := userCondition(where); cond != nil {
		del = del.Where(cond)
	}
	return s.execDelete(ctx, "users", del)
}

// FindManyPreferences returns the matching preferences.
func (s *SQLStorage) FindManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) ([]*userrecords.UserPreference, error) {
	sel := s.sb.Select(preferenceColumns...).From("user_preferences")
	if cond := preferenceCondition(where); cond != nil {
		sel = sel.Where(cond)
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build preference query: %w", s.name, err)
	}

	var records []preferenceRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, translateError(s.name+": failed to query preferences", err)
	}

	prefs := make([]*userrecords.UserPreference, len(records))
	for i, r := range records {
		prefs[i] = r.toPreference()
	}
	return prefs, nil
}

// DeleteManyPreferences deletes the matching preferences.
func (s *SQLStorage) DeleteManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) (int64, error) {
	del := s.sb.Delete("user_preferences")
	if cond := preferenceCondition(where); cond != nil {
		del = del.Where(cond)
	}
	return s.execDelete(ctx, "preferences", del)
}

func (s *SQLStorage) execDelete(ctx context.Context, what string, del squirrel.DeleteBuilder) (int64, error) {
	query, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build delete: %w", s.name, err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateError(fmt.Sprintf("%s: failed to delete %s", s.name, what), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get affected rows: %w", s.name, err)
	}
	return rows, nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
