// Package lilim reads PDPTW instances in the Li & Lim benchmark format.
//
// The first line holds "vehicles capacity speed". Every following line is a
// task: "id x y demand ready due service pickup delivery". Task 0 is the
// depot; pickups name their delivery task and deliveries their pickup task.
package lilim

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"pdptw/internal/model"
)

// Header is the first line of an instance file.
type Header struct {
	Vehicles int
	Capacity int
	Speed    float64
}

// Source loads an instance from a file.
type Source struct {
	Path string
}

func (s Source) Name() string { return "lilim" }

// Load opens and parses the file. The instance is named after the file.
func (s Source) Load() (*model.Instance, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("lilim: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	return Parse(f, name)
}

// Parse reads a whole instance.
func Parse(r io.Reader, name string) (*model.Instance, error) {
	sc := bufio.NewScanner(r)
	var (
		header    Header
		records   []model.Record
		seenFirst bool
		line      int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !seenFirst {
			h, err := parseHeader(fields)
			if err != nil {
				return nil, fmt.Errorf("lilim: line %d: %w", line, err)
			}
			header, seenFirst = h, true
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("lilim: line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lilim: %w", err)
	}
	if !seenFirst {
		return nil, fmt.Errorf("lilim: empty instance")
	}
	return Build(name, header, records)
}

func parseHeader(fields []string) (Header, error) {
	if len(fields) < 2 {
		return Header{}, fmt.Errorf("header needs vehicles and capacity, got %d fields", len(fields))
	}
	var h Header
	var err error
	if h.Vehicles, err = strconv.Atoi(fields[0]); err != nil {
		return Header{}, fmt.Errorf("vehicles: %w", err)
	}
	if h.Capacity, err = strconv.Atoi(fields[1]); err != nil {
		return Header{}, fmt.Errorf("capacity: %w", err)
	}
	if len(fields) > 2 {
		if h.Speed, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return Header{}, fmt.Errorf("speed: %w", err)
		}
	}
	return h, nil
}

func parseRecord(fields []string) (model.Record, error) {
	if len(fields) != 9 {
		return model.Record{}, fmt.Errorf("task needs 9 fields, got %d", len(fields))
	}
	ints := [4]int{}
	floats := [5]float64{}
	var err error
	for i, idx := range []int{0, 3, 7, 8} {
		if ints[i], err = strconv.Atoi(fields[idx]); err != nil {
			return model.Record{}, fmt.Errorf("field %d: %w", idx+1, err)
		}
	}
	for i, idx := range []int{1, 2, 4, 5, 6} {
		if floats[i], err = strconv.ParseFloat(fields[idx], 64); err != nil {
			return model.Record{}, fmt.Errorf("field %d: %w", idx+1, err)
		}
	}
	return model.Record{
		ID:       ints[0],
		X:        floats[0],
		Y:        floats[1],
		Demand:   ints[1],
		Ready:    floats[2],
		Due:      floats[3],
		Service:  floats[4],
		Pickup:   ints[2],
		Delivery: ints[3],
	}, nil
}

// Build turns records into an instance with a homogeneous fleet of
// header.Vehicles vehicles starting at the depot.
func Build(name string, header Header, records []model.Record) (*model.Instance, error) {
	byID := make(map[int]model.Record, len(records))
	for _, r := range records {
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("lilim: duplicate task %d", r.ID)
		}
		byID[r.ID] = r
	}
	depot, ok := byID[0]
	if !ok {
		return nil, fmt.Errorf("lilim: missing depot task 0")
	}

	var pickups []model.Record
	for _, r := range records {
		switch {
		case r.ID == 0:
		case r.Pickup == 0 && r.Delivery != 0:
			pickups = append(pickups, r)
		case r.Pickup != 0 && r.Delivery == 0:
			p, ok := byID[r.Pickup]
			if !ok || p.Delivery != r.ID {
				return nil, fmt.Errorf("lilim: delivery task %d has no matching pickup %d", r.ID, r.Pickup)
			}
		default:
			return nil, fmt.Errorf("lilim: task %d is neither a pickup nor a delivery", r.ID)
		}
	}
	slices.SortFunc(pickups, func(a, b model.Record) int { return cmp.Compare(a.ID, b.ID) })

	arena := model.NewArena()
	for _, p := range pickups {
		d, ok := byID[p.Delivery]
		if !ok || d.Pickup != p.ID {
			return nil, fmt.Errorf("lilim: pickup task %d has no matching delivery %d", p.ID, p.Delivery)
		}
		arena.AddPair(request(p), request(d))
	}

	in := &model.Instance{
		Name:  name,
		Arena: arena,
		Depot: model.Location{X: depot.X, Y: depot.Y},
	}
	for i := 0; i < header.Vehicles; i++ {
		in.Fleet = append(in.Fleet, model.VehicleSpec{ID: strconv.Itoa(i + 1), Capacity: header.Capacity, Start: in.Depot})
	}
	return in, nil
}

func request(r model.Record) model.Request {
	return model.Request{
		ID:          r.ID,
		Location:    model.Location{X: r.X, Y: r.Y},
		Volume:      r.Demand,
		WindowStart: r.Ready,
		WindowEnd:   r.Due,
		ServiceTime: r.Service,
	}
}
