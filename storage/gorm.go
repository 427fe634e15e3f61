package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CreativeUnicorns/userrecords"
)

// GormStorage implements the Storage interface on top of gorm.
// The schema is created with AutoMigrate from the row models below.
type GormStorage struct {
	db   *gorm.DB
	name string
}

type userRow struct {
	ID         string         `gorm:"type:varchar(36);primaryKey"`
	Name       string         `gorm:"not null;uniqueIndex:idx_users_age_name,priority:2"`
	Age        int            `gorm:"not null;uniqueIndex:idx_users_age_name,priority:1"`
	Email      string         `gorm:"not null;uniqueIndex"`
	IsAdmin    bool           `gorm:"not null"`
	Preference *preferenceRow `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (userRow) TableName() string { return "users" }

func (r *userRow) toUser() *userrecords.User {
	u := &userrecords.User{
		ID:        r.ID,
		Name:      r.Name,
		Age:       r.Age,
		Email:     r.Email,
		IsAdmin:   r.IsAdmin,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Preference != nil {
		u.Preference = r.Preference.toPreference()
	}
	return u
}

type preferenceRow struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	EmailUpdates bool   `gorm:"not null"`
	UserID       string `gorm:"type:varchar(36);not null;uniqueIndex"`
}

func (preferenceRow) TableName() string { return "user_preferences" }

func (r *preferenceRow) toPreference() *userrecords.UserPreference {
	return &userrecords.UserPreference{ID: r.ID, EmailUpdates: r.EmailUpdates, UserID: r.UserID}
}

// openGormStorage opens the connection through sqlOpenFunc and hands it to gorm.
func openGormStorage(name, driverName, dsn string, dialector func(*sql.DB) gorm.Dialector) (*GormStorage, error) {
	db, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database connection: %w", name, err)
	}
	if driverName == driverSQLite {
		db.SetMaxOpenConns(1)
	}

	gdb, err := gorm.Open(dialector(db), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to initialize gorm: %w", name, err)
	}

	if err := gdb.AutoMigrate(&userRow{}, &preferenceRow{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", name, err)
	}

	return &GormStorage{db: gdb, name: name}, nil
}

// CreateUser inserts the user and, through the has-one association, its preference.
// gorm wraps both inserts in one transaction.
func (s *GormStorage) CreateUser(ctx context.Context, in *userrecords.CreateUserInput) (*userrecords.User, error) {
	row := userRow{
		ID:      newID(),
		Name:    in.Name,
		Age:     in.Age,
		Email:   in.Email,
		IsAdmin: in.IsAdmin,
	}
	if in.Preference != nil {
		row.Preference = &preferenceRow{ID: newID(), EmailUpdates: in.Preference.EmailUpdates}
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translateError(fmt.Sprintf("%s: failed to create user %q", s.name, in.Email), err)
	}
	return row.toUser(), nil
}

// FindUniqueUser returns the single user matching where, or userrecords.ErrNotFound.
func (s *GormStorage) FindUniqueUser(ctx context.Context, where userrecords.UserUniqueWhere, includePreference bool) (*userrecords.User, error) {
	tx, err := applyCondition(s.db.WithContext(ctx), userCondition(where.Where()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if includePreference {
		tx = tx.Preload("Preference")
	}

	var row userRow
	if err := tx.Take(&row).Error; err != nil {
		return nil, translateError(s.name+": user", err)
	}
	return row.toUser(), nil
}

// FindManyUsers lists users, preloading preferences when asked to.
func (s *GormStorage) FindManyUsers(ctx context.Context, q *userrecords.UserQuery) ([]*userrecords.User, error) {
	if q == nil {
		q = &userrecords.UserQuery{}
	}

	tx, err := applyCondition(s.db.WithContext(ctx).Model(&userRow{}), userCondition(q.Where))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	for _, o := range orderClauses(q) {
		tx = tx.Order(o)
	}
	paged := pagedInSQL(q)
	if paged {
		tx = tx.Limit(q.Take)
		if q.Skip > 0 {
			tx = tx.Offset(q.Skip)
		}
	}
	if q.IncludePreference {
		tx = tx.Preload("Preference")
	}

	var rows []userRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, translateError(s.name+": failed to query users", err)
	}

	users := make([]*userrecords.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toUser()
	}
	if !paged {
		users = userrecords.Page(userrecords.DistinctUsers(users, q.Distinct), q.Skip, q.Take)
	}
	return users, nil
}

// DeleteManyUsers deletes the matching users; a nil filter deletes all of them.
func (s *GormStorage) DeleteManyUsers(ctx context.Context, where *userrecords.UserWhere) (int64, error) {
	tx, err := applyCondition(s.db.WithContext(ctx), userCondition(where))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}

	result := tx.Delete(&userRow{})
	if result.Error != nil {
		return 0, translateError(s.name+": failed to delete users", result.Error)
	}
	return result.RowsAffected, nil
}

// FindManyPreferences returns the matching preferences.
func (s *GormStorage) FindManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) ([]*userrecords.UserPreference, error) {
	tx, err := applyCondition(s.db.WithContext(ctx).Model(&preferenceRow{}), preferenceCondition(where))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	var rows []preferenceRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, translateError(s.name+": failed to query preferences", err)
	}

	prefs := make([]*userrecords.UserPreference, len(rows))
	for i := range rows {
		prefs[i] = rows[i].toPreference()
	}
	return prefs, nil
}

// DeleteManyPreferences deletes the matching preferences; a nil filter deletes all of them.
func (s *GormStorage) DeleteManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) (int64, error) {
	tx, err := applyCondition(s.db.WithContext(ctx), preferenceCondition(where))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}

	result := tx.Delete(&preferenceRow{})
	if result.Error != nil {
		return 0, translateError(s.name+": failed to delete preferences", result.Error)
	}
	return result.RowsAffected, nil
}

// Close closes the underlying database connection.
func (s *GormStorage) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%s: failed to get database handle: %w", s.name, err)
	}
	return db.Close()
}

// applyCondition adds cond as a WHERE clause. Without a condition, bulk
// statements are allowed to touch every row.
func applyCondition(tx *gorm.DB, cond squirrel.Sqlizer) (*gorm.DB, error) {
	if cond == nil {
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}), nil
	}
	query, args, err := cond.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}
	return tx.Where(query, args...), nil
}
