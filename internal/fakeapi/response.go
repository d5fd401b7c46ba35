package fakeapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"pft/internal/apperr"
)

const maxBodyBytes = 1 << 20

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeDetail answers with the {"detail": "..."} error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidation answers 422 with one entry per invalid body field. Errors
// that carry no field list become a single body-level entry.
func writeValidation(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	var entries []fieldError
	if errors.As(err, &ae) && len(ae.Fields) > 0 {
		names := make([]string, 0, len(ae.Fields))
		for name := range ae.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		where := "body"
		if ae.Op == "query" {
			where = "query"
		}
		for _, name := range names {
			entries = append(entries, fieldError{
				Loc:  []string{where, name},
				Msg:  ae.Fields[name],
				Type: "value_error",
			})
		}
	} else {
		entries = []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": entries})
}

// decodeBody reads a JSON request body into v. It writes the error response
// itself and reports whether the handler should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("request body is required")
	}
	writeValidation(w, err)
	return false
}

func validationError(field, msg string) error {
	return apperr.Validation("query", map[string]string{field: msg})
}
