// Package report writes the result files of a solver run.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"pdptw/internal/model"
)

// Run is what gets reported.
type Run struct {
	Instance   string
	Algorithms model.Algorithms
	Search     model.SearchParams
	Solution   *model.Solution
	Unassigned []int
}

// Writer writes "<instance>_<iterations>_<generation>_routes.txt" and
// "..._solutionDetails.txt" into Dir.
type Writer struct {
	Dir string
	Now func() time.Time
}

// Prefix is the path shared by both files of a run.
func (w Writer) Prefix(r Run) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%d_%s_", r.Instance, r.Search.Iterations, r.Algorithms.Generation))
}

// Write writes both files. A failing file is logged and does not stop the
// other; the returned error joins every failure.
func (w Writer) Write(r Run) ([]string, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	date := now().Format(time.DateOnly)
	prefix := w.Prefix(r)

	files := []struct {
		path string
		body func() (string, error)
	}{
		{prefix + "routes.txt", func() (string, error) { return routes(r, date), nil }},
		{prefix + "solutionDetails.txt", func() (string, error) { return details(r, date) }},
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		log.WithError(err).Warn("cannot create report directory")
		return nil, fmt.Errorf("report: %w", err)
	}
	var written []string
	var errs []error
	for _, f := range files {
		body, err := f.body()
		if err == nil {
			err = os.WriteFile(f.path, []byte(body), 0o644)
		}
		if err != nil {
			log.WithError(err).WithField("path", f.path).Warn("cannot write report")
			errs = append(errs, fmt.Errorf("report %s: %w", filepath.Base(f.path), err))
			continue
		}
		written = append(written, f.path)
	}
	return written, errors.Join(errs...)
}

func routes(r Run, date string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instance name: %s\nDate: %s\nSolution:\n", r.Instance, date)
	for _, v := range r.Solution.Vehicles() {
		ids := v.Route().IDs()
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, "%s: %s\n", v.ID, strings.Join(parts, ", "))
	}
	return b.String()
}

func details(r Run, date string) (string, error) {
	conf, err := yaml.Marshal(struct {
		Algorithms model.Algorithms   `yaml:"algorithms"`
		Search     model.SearchParams `yaml:"search"`
	}{r.Algorithms, r.Search})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n%s\n", date, conf)
	fmt.Fprintf(&b, "Objective value: %g\n", r.Solution.ObjectiveValue)
	fmt.Fprintf(&b, "Vehicles used: %d\n", r.Solution.UsedVehicles())
	fmt.Fprintf(&b, "Unassigned requests: %v\n", r.Unassigned)
	fmt.Fprintf(&b, "\n%s\n", r.Solution)
	return b.String(), nil
}
