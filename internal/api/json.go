package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pdptw/internal/opt"
)

// Problem represents an RFC7807 problem details response body. Errors lists
// every individual validation failure when there are several.
type Problem struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Instance string   `json:"instance,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemErrors(w, status, title, detail, instance, nil)
}

func writeProblemErrors(w http.ResponseWriter, status int, title, detail, instance string, errs []string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		Errors:   errs,
	})
}

// validationErrors flattens joined errors and unknown strategy families
// into one message each.
func validationErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		var inv *opt.InvalidAlgorithmsError
		if errors.As(e, &inv) && e == error(inv) {
			for _, f := range inv.Families {
				out = append(out, "invalid "+f+" algorithm name")
			}
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, c := range j.Unwrap() {
				if c != opt.ErrInvalidArgument {
					walk(c)
				}
			}
			return
		}
		for _, line := range strings.Split(e.Error(), "\n") {
			out = append(out, line)
		}
	}
	walk(err)
	return out
}
