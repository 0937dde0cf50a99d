package utils

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/MultiX0/dbgate/errs"
	"github.com/google/uuid"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RespondError writes the error as a JSON body with the status of its kind.
func RespondError(w http.ResponseWriter, err error) {
	WriteJSON(w, errs.KindOf(err).HTTPStatus(), map[string]any{"error": err.Error()})
}

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier checks a table, alias or column name before it is
// interpolated into SQL text. Values always travel as bind parameters; this
// guards the identifier positions.
func ValidateIdentifier(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.InvalidArgf("identifier cannot be empty")
	}
	if !validIdentifier.MatchString(name) {
		return errs.InvalidArgf("invalid identifier format: %s", name)
	}
	return nil
}

// IsJSON reports whether s parses as a JSON object or array.
func IsJSON(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return json.Valid([]byte(s))
}

func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
