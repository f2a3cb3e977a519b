package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlLayoutFile is the top-level YAML structure for layout files.
type yamlLayoutFile struct {
	Layout yamlLayout `yaml:"layout"`
}

// yamlLayout is the YAML representation of a room layout.
type yamlLayout struct {
	Default yamlRoomLayout   `yaml:"default"`
	Rooms   []yamlRoomLayout `yaml:"rooms"`
}

// yamlRoomLayout is the YAML representation of one room's placements.
type yamlRoomLayout struct {
	Index     int            `yaml:"index"`
	Buildings []yamlBuilding `yaml:"buildings"`
}

// yamlBuilding is the YAML representation of a building.
type yamlBuilding struct {
	Row      int `yaml:"row"`
	Col      int `yaml:"col"`
	Strength int `yaml:"strength"`
}

// Layout lists the buildings placed in rooms at world initialisation.
// Rooms without an override receive the default placements.
type Layout struct {
	Default   []Building
	Overrides map[int][]Building
}

// BuildingsFor returns the placements for room index. A zero strength means
// a full-strength building.
func (l *Layout) BuildingsFor(index, maxStrength int) []Building {
	src, ok := l.Overrides[index]
	if !ok {
		src = l.Default
	}
	out := make([]Building, 0, len(src))
	for _, b := range src {
		if b.Strength == 0 {
			b.Strength = maxStrength
		}
		out = append(out, b)
	}
	return out
}

// Validate checks that every placement fits the world dimensions and no two
// buildings share a cell within a room.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (l *Layout) Validate(totalRooms, rows, cols int) error {
	check := func(label string, bs []Building) error {
		seen := make(map[Location]bool, len(bs))
		for _, b := range bs {
			loc := b.Location
			if loc.Row < 0 || loc.Row >= rows || loc.Col < 0 || loc.Col >= cols {
				return fmt.Errorf("%s: building %s outside %dx%d grid", label, loc, rows, cols)
			}
			if b.Strength < 0 {
				return fmt.Errorf("%s: building %s has negative strength %d", label, loc, b.Strength)
			}
			if seen[loc] {
				return fmt.Errorf("%s: duplicate building at %s", label, loc)
			}
			seen[loc] = true
		}
		return nil
	}
	if err := check("default", l.Default); err != nil {
		return err
	}
	for idx, bs := range l.Overrides {
		if idx < 0 || idx >= totalRooms {
			return fmt.Errorf("room %d: index outside [0,%d)", idx, totalRooms)
		}
		if err := check(fmt.Sprintf("room %d", idx), bs); err != nil {
			return err
		}
	}
	return nil
}

// LoadLayoutFromFile reads a layout YAML file.
//
// Precondition: path must point to a YAML layout file.
// Postcondition: Returns the parsed Layout or a non-nil error.
func LoadLayoutFromFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file %s: %w", path, err)
	}
	return LoadLayoutFromBytes(data)
}

// LoadLayoutFromBytes parses a layout from YAML bytes.
func LoadLayoutFromBytes(data []byte) (*Layout, error) {
	var file yamlLayoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing layout YAML: %w", err)
	}
	layout := &Layout{
		Default:   convertYAMLBuildings(file.Layout.Default.Buildings),
		Overrides: make(map[int][]Building, len(file.Layout.Rooms)),
	}
	for _, yr := range file.Layout.Rooms {
		if _, dup := layout.Overrides[yr.Index]; dup {
			return nil, fmt.Errorf("layout lists room %d twice", yr.Index)
		}
		layout.Overrides[yr.Index] = convertYAMLBuildings(yr.Buildings)
	}
	return layout, nil
}

func convertYAMLBuildings(ybs []yamlBuilding) []Building {
	out := make([]Building, 0, len(ybs))
	for _, yb := range ybs {
		out = append(out, Building{
			Location: Location{Row: yb.Row, Col: yb.Col},
			Strength: yb.Strength,
		})
	}
	return out
}
