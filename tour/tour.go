// Package tour runs the data-access walkthrough: it creates a user with a
// nested preference, lists both record kinds, optionally runs a set of query
// examples and finally bulk-deletes everything, printing a colored label
// before every step and the step's result or error message after it.
package tour

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/CreativeUnicorns/userrecords"
)

// Client is the part of *userrecords.Client the walkthrough needs.
type Client interface {
	CreateUser(ctx context.Context, in userrecords.CreateUserInput) (*userrecords.User, error)
	FindUniqueUser(ctx context.Context, where userrecords.UserUniqueWhere) (*userrecords.User, error)
	FindFirstUser(ctx context.Context, q userrecords.UserQuery) (*userrecords.User, error)
	FindManyUsers(ctx context.Context, q userrecords.UserQuery) ([]*userrecords.User, error)
	FindManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) ([]*userrecords.UserPreference, error)
	DeleteManyUsers(ctx context.Context, where *userrecords.UserWhere) (userrecords.BatchResult, error)
	DeleteManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) (userrecords.BatchResult, error)
}

// Seed is the user created by the first step.
type Seed struct {
	Name         string
	Age          int
	Email        string
	IsAdmin      bool
	EmailUpdates bool
}

// DefaultSeed returns the user created when no other seed is configured.
func DefaultSeed() Seed {
	return Seed{
		Name:         "Eugene",
		Age:          4,
		Email:        "asdsa@example.com",
		IsAdmin:      true,
		EmailUpdates: true,
	}
}

// Step labels, printed in this order.
const (
	LabelCreateUser      = "Creating User"
	LabelListUsers       = "Listing Users"
	LabelListPreferences = "Listing UserPreferences"
	LabelFindUnique      = "Find Unique User"
	LabelFindFirst       = "Find First User Where..."
	LabelFindDistinct    = "Find Many Users Where..."
	LabelPaginate        = "Find Many Users with pagination"
	LabelFindAnd         = "Find Users Where AND..."
	LabelDeleteUsers     = "Deleting Users"
	LabelDeletePrefs     = "Deleting User Preferences"
)

// Runner executes the walkthrough against a Client.
type Runner struct {
	client  Client
	out     io.Writer
	label   *color.Color
	seed    Seed
	queries bool
	logger  userrecords.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSeed replaces DefaultSeed.
func WithSeed(seed Seed) Option {
	return func(r *Runner) {
		r.seed = seed
	}
}

// WithQueries adds the query examples between the listing and the delete steps.
func WithQueries(enabled bool) Option {
	return func(r *Runner) {
		r.queries = enabled
	}
}

// WithColor forces labels to be colored or plain. By default fatih/color
// decides based on the terminal and NO_COLOR.
func WithColor(enabled bool) Option {
	return func(r *Runner) {
		if enabled {
			r.label.EnableColor()
		} else {
			r.label.DisableColor()
		}
	}
}

// WithLogger logs failed steps in addition to printing them.
func WithLogger(l userrecords.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner printing to out.
func New(client Client, out io.Writer, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		out:    out,
		label:  color.New(color.Bold, color.Underline, color.FgBlue),
		seed:   DefaultSeed(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type step struct {
	label string
	run   func(ctx context.Context) (any, error)
}

// Run executes every step in order. A failing step prints its error message
// and the run continues; the returned error joins all step failures.
func (r *Runner) Run(ctx context.Context) error {
	var errs []error
	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		fmt.Fprintln(r.out, r.label.Sprint(s.label))

		result, err := s.run(ctx)
		if errors.Is(err, userrecords.ErrNotFound) {
			// unique and first lookups report a miss as null
			result, err = nil, nil
		}
		if err != nil {
			fmt.Fprintln(r.out, err.Error())
			if r.logger != nil {
				r.logger.Warn("tour step failed", "step", s.label, "error", err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.label, err))
			continue
		}

		if err := r.print(result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.label, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", userrecords.ErrSerialization, err)
	}
	_, err = fmt.Fprintln(r.out, string(data))
	return err
}

func (r *Runner) steps() []step {
	steps := []step{
		{LabelCreateUser, r.createUser},
		{LabelListUsers, func(ctx context.Context) (any, error) {
			return r.client.FindManyUsers(ctx, userrecords.UserQuery{})
		}},
		{LabelListPreferences, func(ctx context.Context) (any, error) {
			return r.client.FindManyPreferences(ctx, nil)
		}},
	}
	if r.queries {
		steps = append(steps, r.querySteps()...)
	}
	return append(steps,
		step{LabelDeleteUsers, func(ctx context.Context) (any, error) {
			return r.client.DeleteManyUsers(ctx, nil)
		}},
		step{LabelDeletePrefs, func(ctx context.Context) (any, error) {
			return r.client.DeleteManyPreferences(ctx, nil)
		}},
	)
}

func (r *Runner) createUser(ctx context.Context) (any, error) {
	user, err := r.client.CreateUser(ctx, userrecords.CreateUserInput{
		Name:       r.seed.Name,
		Age:        r.seed.Age,
		Email:      r.seed.Email,
		IsAdmin:    r.seed.IsAdmin,
		Preference: &userrecords.CreatePreferenceInput{EmailUpdates: r.seed.EmailUpdates},
	})
	if err != nil {
		return nil, err
	}
	sel := userrecords.UserSelect{
		Name:       true,
		Preference: &userrecords.PreferenceSelect{EmailUpdates: true},
	}
	return sel.Project(user), nil
}

func (r *Runner) querySteps() []step {
	name := r.seed.Name
	prefix := strings.ToLower(firstRunes(name, 3))
	return []step{
		{LabelFindUnique, func(ctx context.Context) (any, error) {
			return r.client.FindUniqueUser(ctx, userrecords.UserUniqueWhere{
				AgeName: &userrecords.AgeName{Age: r.seed.Age, Name: name},
			})
		}},
		{LabelFindFirst, func(ctx context.Context) (any, error) {
			return r.client.FindFirstUser(ctx, userrecords.UserQuery{
				Where: &userrecords.UserWhere{Name: &userrecords.StringFilter{StartsWith: prefix, Insensitive: true}},
			})
		}},
		{LabelFindDistinct, func(ctx context.Context) (any, error) {
			return r.client.FindManyUsers(ctx, userrecords.UserQuery{
				Where:    &userrecords.UserWhere{Name: &userrecords.StringFilter{Equals: userrecords.Ptr(name)}},
				Distinct: []userrecords.UserField{userrecords.UserFieldName},
			})
		}},
		{LabelPaginate, func(ctx context.Context) (any, error) {
			return r.client.FindManyUsers(ctx, userrecords.UserQuery{
				OrderBy: []userrecords.OrderBy{{Field: userrecords.UserFieldAge, Desc: true}},
				Skip:    1,
				Take:    2,
			})
		}},
		{LabelFindAnd, func(ctx context.Context) (any, error) {
			return r.client.FindManyUsers(ctx, userrecords.UserQuery{
				Where: &userrecords.UserWhere{And: []userrecords.UserWhere{
					{Name: &userrecords.StringFilter{StartsWith: firstRunes(name, 1)}},
					{Name: &userrecords.StringFilter{EndsWith: lastRunes(name, 1)}},
				}},
			})
		}},
	}
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) < n {
		return s
	}
	return string(runes[:n])
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) < n {
		return s
	}
	return string(runes[len(runes)-n:])
}
