package userrecords

import (
	"fmt"
	"sort"
	"strings"
)

// UserField names a sortable, distinct-able column of a User.
type UserField string

const (
	UserFieldID        UserField = "id"
	UserFieldName      UserField = "name"
	UserFieldAge       UserField = "age"
	UserFieldEmail     UserField = "email"
	UserFieldIsAdmin   UserField = "is_admin"
	UserFieldCreatedAt UserField = "created_at"
)

// Valid reports whether f is a known column. Backends rely on this before
// interpolating f into ORDER BY clauses.
func (f UserField) Valid() bool {
	switch f {
	case UserFieldID, UserFieldName, UserFieldAge, UserFieldEmail, UserFieldIsAdmin, UserFieldCreatedAt:
		return true
	}
	return false
}

// Ptr returns a pointer to v. Handy for optional filter fields.
func Ptr[T any](v T) *T {
	return &v
}

// StringFilter matches a text column. All set conditions must hold.
// Insensitive folds ASCII letters only, the way SQLite's LOWER() does;
// other letters still compare by case.
type StringFilter struct {
	Equals      *string
	StartsWith  string
	EndsWith    string
	Contains    string
	Insensitive bool
}

// Match reports whether v satisfies the filter.
func (f *StringFilter) Match(v string) bool {
	if f == nil {
		return true
	}
	fold := f.Fold
	v = fold(v)
	if f.Equals != nil && v != fold(*f.Equals) {
		return false
	}
	if f.StartsWith != "" && !strings.HasPrefix(v, fold(f.StartsWith)) {
		return false
	}
	if f.EndsWith != "" && !strings.HasSuffix(v, fold(f.EndsWith)) {
		return false
	}
	if f.Contains != "" && !strings.Contains(v, fold(f.Contains)) {
		return false
	}
	return true
}

// Fold returns s as the filter compares it: ASCII-lowercased when the
// filter is insensitive, unchanged otherwise.
func (f *StringFilter) Fold(s string) string {
	if f == nil || !f.Insensitive {
		return s
	}
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// UserWhere filters users. A nil *UserWhere, or the zero value, matches every user.
type UserWhere struct {
	ID      string
	Name    *StringFilter
	Email   *StringFilter
	Age     *int
	IsAdmin *bool
	// And requires every nested filter to match.
	And []UserWhere
	// Or requires at least one nested filter to match when non-empty.
	Or []UserWhere
}

// Matches reports whether u satisfies w.
func (w *UserWhere) Matches(u *User) bool {
	if w == nil {
		return true
	}
	if w.ID != "" && u.ID != w.ID {
		return false
	}
	if !w.Name.Match(u.Name) || !w.Email.Match(u.Email) {
		return false
	}
	if w.Age != nil && u.Age != *w.Age {
		return false
	}
	if w.IsAdmin != nil && u.IsAdmin != *w.IsAdmin {
		return false
	}
	for i := range w.And {
		if !w.And[i].Matches(u) {
			return false
		}
	}
	if len(w.Or) > 0 {
		for i := range w.Or {
			if w.Or[i].Matches(u) {
				return true
			}
		}
		return false
	}
	return true
}

// OrderBy sorts by a single field.
type OrderBy struct {
	Field UserField
	Desc  bool
}

// UserQuery describes a findMany / findFirst call.
type UserQuery struct {
	Where   *UserWhere
	OrderBy []OrderBy
	// Skip drops the first n results after ordering.
	Skip int
	// Take limits the number of results. Zero means no limit.
	Take int
	// Distinct keeps the first user for each combination of the given fields.
	// It is applied before Skip and Take.
	Distinct          []UserField
	IncludePreference bool
}

// Validate checks pagination bounds and field names.
func (q *UserQuery) Validate() error {
	if q == nil {
		return nil
	}
	if q.Skip < 0 || q.Take < 0 {
		return fmt.Errorf("%w: skip and take must not be negative", ErrInvalidInput)
	}
	for _, o := range q.OrderBy {
		if !o.Field.Valid() {
			return fmt.Errorf("%w: unknown order field %q", ErrInvalidInput, o.Field)
		}
	}
	for _, f := range q.Distinct {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown distinct field %q", ErrInvalidInput, f)
		}
	}
	return nil
}

// SortUsers orders users in place. Earlier entries in order take precedence.
func SortUsers(users []*User, order []OrderBy) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, o := range order {
			c := compareField(users[i], users[j], o.Field)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b *User, f UserField) int {
	switch f {
	case UserFieldID:
		return strings.Compare(a.ID, b.ID)
	case UserFieldName:
		return strings.Compare(a.Name, b.Name)
	case UserFieldEmail:
		return strings.Compare(a.Email, b.Email)
	case UserFieldAge:
		return a.Age - b.Age
	case UserFieldIsAdmin:
		switch {
		case a.IsAdmin == b.IsAdmin:
			return 0
		case b.IsAdmin:
			return -1
		default:
			return 1
		}
	case UserFieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}

// DistinctUsers keeps the first user for every distinct combination of fields.
func DistinctUsers(users []*User, fields []UserField) []*User {
	if len(fields) == 0 {
		return users
	}
	seen := make(map[string]struct{}, len(users))
	out := make([]*User, 0, len(users))
	for _, u := range users {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fieldValue(u, f)
		}
		key := strings.Join(parts, "\x00")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

func fieldValue(u *User, f UserField) string {
	switch f {
	case UserFieldID:
		return u.ID
	case UserFieldName:
		return u.Name
	case UserFieldEmail:
		return u.Email
	case UserFieldAge:
		return fmt.Sprint(u.Age)
	case UserFieldIsAdmin:
		return fmt.Sprint(u.IsAdmin)
	case UserFieldCreatedAt:
		return u.CreatedAt.String()
	}
	return ""
}

// Page applies skip and take to an already ordered slice.
func Page(users []*User, skip, take int) []*User {
	if skip >= len(users) {
		return []*User{}
	}
	users = users[skip:]
	if take > 0 && take < len(users) {
		users = users[:take]
	}
	return users
}

// AgeName is the compound unique key of a user.
type AgeName struct {
	Age  int
	Name string
}

// UserUniqueWhere selects at most one user. Exactly one field must be set.
type UserUniqueWhere struct {
	ID      string
	Email   string
	AgeName *AgeName
}

// Validate ensures exactly one unique key is given.
func (w UserUniqueWhere) Validate() error {
	n := 0
	if w.ID != "" {
		n++
	}
	if w.Email != "" {
		n++
	}
	if w.AgeName != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: exactly one unique key is required", ErrInvalidInput)
	}
	return nil
}

// Where converts the unique key into a regular filter.
func (w UserUniqueWhere) Where() *UserWhere {
	switch {
	case w.ID != "":
		return &UserWhere{ID: w.ID}
	case w.Email != "":
		return &UserWhere{Email: &StringFilter{Equals: Ptr(w.Email)}}
	case w.AgeName != nil:
		return &UserWhere{Age: Ptr(w.AgeName.Age), Name: &StringFilter{Equals: Ptr(w.AgeName.Name)}}
	}
	return &UserWhere{}
}

func (w UserUniqueWhere) cacheKey() string {
	switch {
	case w.ID != "":
		return userCachePrefix + "id:" + w.ID
	case w.Email != "":
		return userCachePrefix + "email:" + w.Email
	case w.AgeName != nil:
		return fmt.Sprintf("%sage_name:%d:%s", userCachePrefix, w.AgeName.Age, w.AgeName.Name)
	}
	return ""
}

// PreferenceWhere filters preferences. A nil *PreferenceWhere matches every preference.
type PreferenceWhere struct {
	ID           string
	UserID       string
	EmailUpdates *bool
}

// Matches reports whether p satisfies w.
func (w *PreferenceWhere) Matches(p *UserPreference) bool {
	if w == nil {
		return true
	}
	if w.ID != "" && p.ID != w.ID {
		return false
	}
	if w.UserID != "" && p.UserID != w.UserID {
		return false
	}
	if w.EmailUpdates != nil && p.EmailUpdates != *w.EmailUpdates {
		return false
	}
	return true
}

// UserSelect picks the fields of a User to return, like a projection.
type UserSelect struct {
	ID         bool
	Name       bool
	Age        bool
	Email      bool
	IsAdmin    bool
	CreatedAt  bool
	Preference *PreferenceSelect
}

// PreferenceSelect picks the fields of a UserPreference to return.
type PreferenceSelect struct {
	ID           bool
	EmailUpdates bool
	UserID       bool
}

// Project returns only the selected fields of u keyed by their JSON names.
func (s UserSelect) Project(u *User) map[string]any {
	out := make(map[string]any)
	if u == nil {
		return out
	}
	if s.ID {
		out["id"] = u.ID
	}
	if s.Name {
		out["name"] = u.Name
	}
	if s.Age {
		out["age"] = u.Age
	}
	if s.Email {
		out["email"] = u.Email
	}
	if s.IsAdmin {
		out["is_admin"] = u.IsAdmin
	}
	if s.CreatedAt {
		out["created_at"] = u.CreatedAt
	}
	if s.Preference != nil {
		if u.Preference == nil {
			out["preference"] = nil
		} else {
			out["preference"] = s.Preference.project(u.Preference)
		}
	}
	return out
}

func (s PreferenceSelect) project(p *UserPreference) map[string]any {
	out := make(map[string]any)
	if s.ID {
		out["id"] = p.ID
	}
	if s.EmailUpdates {
		out["email_updates"] = p.EmailUpdates
	}
	if s.UserID {
		out["user_id"] = p.UserID
	}
	return out
}
