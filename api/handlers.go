package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CreativeUnicorns/userrecords"
)

const maxBodyBytes = 1 << 20

// handleCreateUser creates a user and, when the body carries one, its preference.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in userrecords.CreateUserInput

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&in); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	user, err := s.client.CreateUser(r.Context(), in)
	if err != nil {
		s.respondWithClientError(w, r, "Failed to create user", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusCreated, user)
}

// handleGetUser fetches a single user by id, including its preference.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.client.FindUniqueUser(r.Context(), userrecords.UserUniqueWhere{ID: chi.URLParam(r, "id")})
	if err != nil {
		s.respondWithClientError(w, r, "Failed to get user", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, user)
}

// handleListUsers supports the filters of parseUserWhere plus
// order_by (a field, "-" prefix for descending, comma separated),
// distinct (comma separated fields), skip, take and include=preference.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	where, err := parseUserWhere(params)
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	q := userrecords.UserQuery{Where: where, IncludePreference: params.Get("include") == "preference"}

	for _, f := range splitList(params.Get("order_by")) {
		o := userrecords.OrderBy{Field: userrecords.UserField(strings.TrimPrefix(f, "-")), Desc: strings.HasPrefix(f, "-")}
		q.OrderBy = append(q.OrderBy, o)
	}
	for _, f := range splitList(params.Get("distinct")) {
		q.Distinct = append(q.Distinct, userrecords.UserField(f))
	}
	if q.Skip, err = intParam(params, "skip"); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	if q.Take, err = intParam(params, "take"); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	users, err := s.client.FindManyUsers(r.Context(), q)
	if err != nil {
		s.respondWithClientError(w, r, "Failed to list users", err)
		return
	}
	if users == nil {
		users = []*userrecords.User{}
	}
	s.respondWithJSON(w, r, http.StatusOK, users)
}

// handleDeleteUsers deletes every user matching the filters, all of them without any.
func (s *Server) handleDeleteUsers(w http.ResponseWriter, r *http.Request) {
	where, err := parseUserWhere(r.URL.Query())
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	res, err := s.client.DeleteManyUsers(r.Context(), where)
	if err != nil {
		s.respondWithClientError(w, r, "Failed to delete users", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	where, err := parsePreferenceWhere(r.URL.Query())
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	prefs, err := s.client.FindManyPreferences(r.Context(), where)
	if err != nil {
		s.respondWithClientError(w, r, "Failed to list preferences", err)
		return
	}
	if prefs == nil {
		prefs = []*userrecords.UserPreference{}
	}
	s.respondWithJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handleDeletePreferences(w http.ResponseWriter, r *http.Request) {
	where, err := parsePreferenceWhere(r.URL.Query())
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	res, err := s.client.DeleteManyPreferences(r.Context(), where)
	if err != nil {
		s.respondWithClientError(w, r, "Failed to delete preferences", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, res)
}

// parseUserWhere reads id, name, name_starts_with, name_contains, email,
// email_contains, age and is_admin. Setting insensitive=true makes the
// text filters case-insensitive. It returns nil when no filter is given.
func parseUserWhere(params url.Values) (*userrecords.UserWhere, error) {
	insensitive := params.Get("insensitive") == "true"
	text := func(equals, startsWith, contains string) *userrecords.StringFilter {
		if !params.Has(equals) && startsWith == "" && contains == "" {
			return nil
		}
		f := &userrecords.StringFilter{StartsWith: startsWith, Contains: contains, Insensitive: insensitive}
		if params.Has(equals) {
			f.Equals = userrecords.Ptr(params.Get(equals))
		}
		return f
	}

	where := &userrecords.UserWhere{
		ID:    params.Get("id"),
		Name:  text("name", params.Get("name_starts_with"), params.Get("name_contains")),
		Email: text("email", "", params.Get("email_contains")),
	}
	if params.Has("age") {
		age, err := strconv.Atoi(params.Get("age"))
		if err != nil {
			return nil, fmt.Errorf("%w: age must be an integer", userrecords.ErrInvalidInput)
		}
		where.Age = &age
	}
	if params.Has("is_admin") {
		admin, err := strconv.ParseBool(params.Get("is_admin"))
		if err != nil {
			return nil, fmt.Errorf("%w: is_admin must be a boolean", userrecords.ErrInvalidInput)
		}
		where.IsAdmin = &admin
	}

	if where.ID == "" && where.Name == nil && where.Email == nil && where.Age == nil && where.IsAdmin == nil {
		return nil, nil
	}
	return where, nil
}

// parsePreferenceWhere reads id, user_id and email_updates.
func parsePreferenceWhere(params url.Values) (*userrecords.PreferenceWhere, error) {
	where := &userrecords.PreferenceWhere{ID: params.Get("id"), UserID: params.Get("user_id")}
	if params.Has("email_updates") {
		v, err := strconv.ParseBool(params.Get("email_updates"))
		if err != nil {
			return nil, fmt.Errorf("%w: email_updates must be a boolean", userrecords.ErrInvalidInput)
		}
		where.EmailUpdates = &v
	}
	if where.ID == "" && where.UserID == "" && where.EmailUpdates == nil {
		return nil, nil
	}
	return where, nil
}

func intParam(params url.Values, key string) (int, error) {
	if !params.Has(key) {
		return 0, nil
	}
	n, err := strconv.Atoi(params.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", userrecords.ErrInvalidInput, key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// statusFor maps client errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, userrecords.ErrValidation), errors.Is(err, userrecords.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, userrecords.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, userrecords.ErrAlreadyExists), errors.Is(err, userrecords.ErrRelation):
		return http.StatusConflict
	case errors.Is(err, userrecords.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondWithClientError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.respondWithError(w, r, statusFor(err), message, err)
}

// respondWithError sends a JSON error body. Details of server errors are not exposed.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	body := errorBody{Message: message}
	if err != nil && status < http.StatusInternalServerError {
		body.Details = err.Error()
	}
	s.logger.Debug("API error", "status", status, "message", message, "path", r.URL.Path, "error", err)
	s.respondWithJSON(w, r, status, map[string]errorBody{"error": body})
}

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *Server) respondWithJSON(w http.ResponseWriter, _ *http.Request, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"Failed to marshal response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
