package tour

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/userrecords"
	"github.com/CreativeUnicorns/userrecords/storage"
)

type discardLogger struct{ warns []string }

func (l *discardLogger) Debug(string, ...any) {}
func (l *discardLogger) Info(string, ...any) {}
func (l *discardLogger) Warn(msg string, _ ...any) { l.warns = append(l.warns, msg) }
func (l *discardLogger) Error(string, ...any) {}

func newClient(t *testing.T) (*userrecords.Client, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	client, err := userrecords.New(userrecords.WithStorage(store), userrecords.WithLogger(&discardLogger{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, store
}

// labelLines returns the lines that are step labels, in order.
func labelLines(out string, labels ...string) []string {
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}
	var got []string
	for _, line := range strings.Split(out, "\n") {
		if known[line] {
			got = append(got, line)
		}
	}
	return got
}

func TestRunner_Run(t *testing.T) {
	client, _ := newClient(t)
	var out bytes.Buffer

	err := New(client, &out, WithColor(false)).Run(context.Background())
	require.NoError(t, err)

	s := out.String()
	assert.Equal(t,
		[]string{LabelCreateUser, LabelListUsers, LabelListPreferences, LabelDeleteUsers, LabelDeletePrefs},
		labelLines(s, LabelCreateUser, LabelListUsers, LabelListPreferences, LabelDeleteUsers, LabelDeletePrefs),
	)
	assert.Contains(t, s, "{\n  \"name\": \"Eugene\",\n  \"preference\": {\n    \"email_updates\": true\n  }\n}")
	assert.Contains(t, s, `"email": "asdsa@example.com"`)
	assert.Contains(t, s, `"is_admin": true`)
	assert.Contains(t, s, "{\n  \"count\": 1\n}", "users are deleted")
	assert.Contains(t, s, "{\n  \"count\": 0\n}", "preferences went with their users")
	assert.NotContains(t, s, LabelFindUnique)

	users, err := client.FindManyUsers(context.Background(), userrecords.UserQuery{})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRunner_CreateFailureContinues(t *testing.T) {
	client, _ := newClient(t)
	seed := DefaultSeed()
	_, err := client.CreateUser(context.Background(), userrecords.CreateUserInput{Name: "Other", Age: 30, Email: seed.Email})
	require.NoError(t, err)

	logger := &discardLogger{}
	var out bytes.Buffer
	err = New(client, &out, WithColor(false), WithLogger(logger)).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, userrecords.ErrAlreadyExists)
	assert.Contains(t, err.Error(), LabelCreateUser)
	assert.Equal(t, []string{"tour step failed"}, logger.warns)

	s := out.String()
	assert.Contains(t, s, "record already exists")
	assert.Contains(t, s, LabelListUsers, "later steps still run")
	assert.Contains(t, s, `"name": "Other"`)
	assert.Contains(t, s, "{\n  \"count\": 1\n}")
}

func TestRunner_Queries(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	for _, in := range []userrecords.CreateUserInput{
		{Name: "Kyle", Age: 27, Email: "kyle@test.com"},
		{Name: "Sally", Age: 32, Email: "sally@test.com"},
	} {
		_, err := client.CreateUser(ctx, in)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	err := New(client, &out, WithColor(false), WithQueries(true)).Run(ctx)
	require.NoError(t, err)

	all := []string{
		LabelCreateUser, LabelListUsers, LabelListPreferences,
		LabelFindUnique, LabelFindFirst, LabelFindDistinct, LabelPaginate, LabelFindAnd,
		LabelDeleteUsers, LabelDeletePrefs,
	}
	assert.Equal(t, all, labelLines(out.String(), all...))
	assert.Contains(t, out.String(), "{\n  \"count\": 3\n}")
}

func TestRunner_PrintNull(t *testing.T) {
	var out bytes.Buffer
	r := New(nil, &out, WithColor(false))

	err := r.print(nil)
	require.NoError(t, err)
	assert.Equal(t, "null\n", out.String())
}

func TestRunner_ColoredLabels(t *testing.T) {
	client, _ := newClient(t)
	var out bytes.Buffer

	require.NoError(t, New(client, &out, WithColor(true)).Run(context.Background()))
	assert.Contains(t, out.String(), "\x1b[1;4;34m"+LabelCreateUser+"\x1b[0m")
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	client, store := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := New(client, &out, WithColor(false)).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, out.String())

	users, err := store.FindManyUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRunes(t *testing.T) {
	assert.Equal(t, "Eug", firstRunes("Eugene", 3))
	assert.Equal(t, "e", lastRunes("Eugene", 1))
	assert.Equal(t, "Al", firstRunes("Al", 3))
}
