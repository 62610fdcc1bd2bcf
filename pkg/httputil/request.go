package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/model"
)

// ParseJSON decodes JSON from the request body into the destination.
// Malformed or empty bodies are validation errors.
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if err == io.EOF {
			return apperrors.Newf(apperrors.CodeValidation, "request body is required")
		}
		return apperrors.Newf(apperrors.CodeValidation, "invalid JSON: %v", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteError(w, r, err)
		return false
	}
	return true
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, apperrors.Newf(apperrors.CodeValidation, "missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0, apperrors.Newf(apperrors.CodeValidation, "invalid id for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteError(w, r, err)
		return 0, false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperrors.Newf(apperrors.CodeValidation, "invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryInt64 extracts and parses an int64 query parameter
func ParseQueryInt64(r *http.Request, key string, defaultVal int64) (int64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, apperrors.Newf(apperrors.CodeValidation, "invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, apperrors.Newf(apperrors.CodeValidation, "invalid boolean for query param %s: %s", key, str)
	}
	return val, nil
}

// ParsePage reads limit and offset query parameters. Out of range values are
// clamped rather than rejected.
func ParsePage(r *http.Request) (model.Page, error) {
	limit, err := ParseQueryInt(r, "limit", model.DefaultPageSize)
	if err != nil {
		return model.Page{}, err
	}
	offset, err := ParseQueryInt(r, "offset", 0)
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Limit: limit, Offset: offset}.Normalize(), nil
}

// Validator is a function that validates a value and returns an error message if invalid
type Validator func() (bool, string)

// RequireNonEmpty validates that a string field is not empty
func RequireNonEmpty(fieldName, value string) Validator {
	return func() (bool, string) {
		return value != "", fmt.Sprintf("%s is required", fieldName)
	}
}

// ValidateAll runs multiple validators and writes the first error
func ValidateAll(w http.ResponseWriter, r *http.Request, validators ...Validator) bool {
	for _, validator := range validators {
		if valid, errMsg := validator(); !valid {
			WriteError(w, r, apperrors.Newf(apperrors.CodeValidation, "%s", errMsg))
			return false
		}
	}
	return true
}
