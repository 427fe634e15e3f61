package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/userrecords"
)

const testUserColumns = "id, name, age, email, is_admin, created_at, updated_at"

// TestNewPostgresStorage tests the NewPostgresStorage constructor.
func TestNewPostgresStorage(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))

		originalSqlOpen := sqlOpenFunc
		sqlOpenFunc = func(driverName, dataSourceName string) (*sql.DB, error) {
			assert.Equal(t, driverPostgres, driverName)
			return db, nil
		}
		defer func() { sqlOpenFunc = originalSqlOpen }()

		storage, err := NewPostgresStorage("dummy_conn_string")
		assert.NoError(t, err)
		assert.NotNil(t, storage)
		assert.NoError(t, mock.ExpectationsWereMet(), "sqlmock expectations not met")
	})

	t.Run("sql open error", func(t *testing.T) {
		expectedErr := errors.New("failed to open database")
		originalSqlOpen := sqlOpenFunc
		sqlOpenFunc = func(driverName, dataSourceName string) (*sql.DB, error) {
			return nil, expectedErr
		}
		defer func() { sqlOpenFunc = originalSqlOpen }()

		_, err := NewPostgresStorage("dummy_conn_string")
		assert.ErrorIs(t, err, expectedErr)
	})

	t.Run("ping error", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("ping failed"))

		originalSqlOpen := sqlOpenFunc
		sqlOpenFunc = func(driverName, dataSourceName string) (*sql.DB, error) {
			return db, nil
		}
		defer func() { sqlOpenFunc = originalSqlOpen }()

		_, err = NewPostgresStorage("dummy_conn_string")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "postgres: failed to ping database")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("migrate error", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnError(errors.New("migrate failed"))

		originalSqlOpen := sqlOpenFunc
		sqlOpenFunc = func(driverName, dataSourceName string) (*sql.DB, error) {
			return db, nil
		}
		defer func() { sqlOpenFunc = originalSqlOpen }()

		_, err = NewPostgresStorage("dummy_conn_string")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to run migrations")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func newTestPostgresStorage(t *testing.T) (*SQLStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return &SQLStorage{
		db:   sqlx.NewDb(db, driverPostgres),
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		name: "postgres",
	}, mock
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "age", "email", "is_admin", "created_at", "updated_at"}).
		AddRow("u1", "Sally", 32, "sally@test.com", true, now, now).
		AddRow("u2", "Sally", 12, "sally2@test.com", false, now, now).
		AddRow("u3", "Kyle", 27, "kyle@test.com", false, now, now)
}

func TestPostgresStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	in := &userrecords.CreateUserInput{
		Name:       "Eugene",
		Age:        4,
		Email:      "asdsa@example.com",
		IsAdmin:    true,
		Preference: &userrecords.CreatePreferenceInput{EmailUpdates: true},
	}

	t.Run("successful create with preference", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id,name,age,email,is_admin,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)")).
			WithArgs(sqlmock.AnyArg(), "Eugene", 4, "asdsa@example.com", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_preferences (id,email_updates,user_id) VALUES ($1,$2,$3)")).
			WithArgs(sqlmock.AnyArg(), true, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		user, err := storage.CreateUser(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "Eugene", user.Name)
		require.NotNil(t, user.Preference)
		assert.Equal(t, user.ID, user.Preference.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation rolls back", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		_, err := storage.CreateUser(ctx, in)
		assert.ErrorIs(t, err, userrecords.ErrAlreadyExists)
		assert.Contains(t, err.Error(), `postgres: failed to insert user "asdsa@example.com"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("preference insert error rolls back", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_preferences")).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := storage.CreateUser(ctx, in)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert preference")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin error", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		_, err := storage.CreateUser(ctx, in)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "postgres: failed to begin transaction")
	})
}

func TestPostgresStorage_FindManyUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("filter order and paging with preferences", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT " + testUserColumns + " FROM users WHERE (LOWER(name) LIKE $1 ESCAPE '\\') ORDER BY age DESC LIMIT 2 OFFSET 1")).
			WithArgs("sal%").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "email", "is_admin", "created_at", "updated_at"}).
				AddRow("u2", "Sally", 12, "sally2@test.com", false, time.Now(), time.Now()))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email_updates, user_id FROM user_preferences WHERE user_id IN ($1)")).
			WithArgs("u2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email_updates", "user_id"}).AddRow("p2", false, "u2"))

		users, err := storage.FindManyUsers(ctx, &userrecords.UserQuery{
			Where:             &userrecords.UserWhere{Name: &userrecords.StringFilter{StartsWith: "Sal", Insensitive: true}},
			OrderBy:           []userrecords.OrderBy{{Field: userrecords.UserFieldAge, Desc: true}},
			Skip:              1,
			Take:              2,
			IncludePreference: true,
		})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "u2", users[0].ID)
		require.NotNil(t, users[0].Preference)
		assert.Equal(t, "p2", users[0].Preference.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("distinct is applied before paging", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT " + testUserColumns + " FROM users ORDER BY age DESC")).
			WillReturnRows(userRows())

		users, err := storage.FindManyUsers(ctx, &userrecords.UserQuery{
			OrderBy:  []userrecords.OrderBy{{Field: userrecords.UserFieldAge, Desc: true}},
			Distinct: []userrecords.UserField{userrecords.UserFieldName},
			Take:     5,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u3"}, []string{users[0].ID, users[1].ID})
		assert.Len(t, users, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WillReturnError(errors.New("connection reset"))

		_, err := storage.FindManyUsers(ctx, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "postgres: failed to query users")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStorage_FindUniqueUser(t *testing.T) {
	storage, mock := newTestPostgresStorage(t)
	defer storage.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + testUserColumns + " FROM users WHERE (name = $1 AND age = $2) ORDER BY created_at ASC, id ASC LIMIT 1")).
		WithArgs("Sally", 12).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "email", "is_admin", "created_at", "updated_at"}))

	_, err := storage.FindUniqueUser(context.Background(), userrecords.UserUniqueWhere{AgeName: &userrecords.AgeName{Age: 12, Name: "Sally"}}, false)
	assert.ErrorIs(t, err, userrecords.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete all users", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectExec("^" + regexp.QuoteMeta("DELETE FROM users") + "$").WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := storage.DeleteManyUsers(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete filtered preferences", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_preferences WHERE email_updates = $1")).
			WithArgs(false).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := storage.DeleteManyPreferences(ctx, &userrecords.PreferenceWhere{EmailUpdates: userrecords.Ptr(false)})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows affected error", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_preferences")).
			WillReturnResult(sqlmock.NewErrorResult(errors.New("driver does not support RowsAffected")))

		_, err := storage.DeleteManyPreferences(ctx, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get affected rows")
	})

	t.Run("foreign key error", func(t *testing.T) {
		storage, mock := newTestPostgresStorage(t)
		defer storage.Close()

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE (id = $1)")).
			WithArgs("u1").
			WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

		_, err := storage.DeleteManyUsers(ctx, &userrecords.UserWhere{ID: "u1"})
		assert.ErrorIs(t, err, userrecords.ErrRelation)
	})
}

func TestPostgresStorage_FindManyPreferences(t *testing.T) {
	storage, mock := newTestPostgresStorage(t)
	defer storage.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email_updates, user_id FROM user_preferences WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email_updates", "user_id"}).AddRow("p1", true, "u1"))

	prefs, err := storage.FindManyPreferences(context.Background(), &userrecords.PreferenceWhere{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, &userrecords.UserPreference{ID: "p1", EmailUpdates: true, UserID: "u1"}, prefs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
