package integrations

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"pdptw/internal/integrations/lilim"
	"pdptw/internal/model"
)

// InstanceSource is where problem instances come from.
type InstanceSource interface {
	Name() string
	Load() (*model.Instance, error)
}

// FleetOverride replaces the fleet an instance declares. A non-empty Path
// names a YAML fleet file; otherwise non-zero Vehicles and Capacity replace
// the declared count and capacity.
type FleetOverride struct {
	Path     string
	Vehicles int
	Capacity int
}

// Load reads an instance from src and applies the fleet override.
func Load(src InstanceSource, fleet FleetOverride) (*model.Instance, error) {
	in, err := src.Load()
	if err != nil {
		return nil, err
	}
	if fleet.Path != "" {
		specs, err := LoadFleet(fleet.Path, in.Depot)
		if err != nil {
			return nil, err
		}
		in.Fleet = specs
		return in, nil
	}
	applyFleet(in, fleet.Vehicles, fleet.Capacity)
	return in, nil
}

func applyFleet(in *model.Instance, vehicles, capacity int) {
	if capacity == 0 && len(in.Fleet) > 0 {
		capacity = in.Fleet[0].Capacity
	}
	if vehicles == 0 {
		vehicles = len(in.Fleet)
	}
	in.Fleet = in.Fleet[:0]
	for i := 0; i < vehicles; i++ {
		in.Fleet = append(in.Fleet, model.VehicleSpec{ID: strconv.Itoa(i + 1), Capacity: capacity, Start: in.Depot})
	}
}

type fleetFile struct {
	Vehicles []struct {
		ID       string          `yaml:"id"`
		Capacity int             `yaml:"capacity"`
		Start    *model.Location `yaml:"start"`
	} `yaml:"vehicles"`
}

// LoadFleet reads a YAML fleet file. Vehicles without a start location
// start at depot.
func LoadFleet(path string, depot model.Location) ([]model.VehicleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fleet file: %w", err)
	}
	var f fleetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fleet file: %w", err)
	}
	out := make([]model.VehicleSpec, 0, len(f.Vehicles))
	seen := map[string]bool{}
	for i, v := range f.Vehicles {
		id := v.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		if seen[id] {
			return nil, fmt.Errorf("fleet file: duplicate vehicle %q", id)
		}
		seen[id] = true
		start := depot
		if v.Start != nil {
			start = *v.Start
		}
		out = append(out, model.VehicleSpec{ID: id, Capacity: v.Capacity, Start: start})
	}
	return out, nil
}

// FromRequest builds an instance from a solve submission: either a whole
// instance file in Text or parsed records, with the fleet described by
// Vehicles.
func FromRequest(req model.InstanceIn) (*model.Instance, error) {
	name := req.Name
	if name == "" {
		name = "instance"
	}
	var (
		in  *model.Instance
		err error
	)
	if strings.TrimSpace(req.Text) != "" {
		in, err = lilim.Parse(strings.NewReader(req.Text), name)
	} else {
		in, err = lilim.Build(name, lilim.Header{}, req.Records)
	}
	if err != nil {
		return nil, err
	}
	if len(req.Vehicles.List) > 0 {
		in.Fleet = append([]model.VehicleSpec(nil), req.Vehicles.List...)
		return in, nil
	}
	applyFleet(in, req.Vehicles.Count, req.Vehicles.Capacity)
	return in, nil
}
