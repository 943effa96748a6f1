package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"fleetsim/pkg/geo"
	"fleetsim/pkg/types"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BusConfig describes one bus of the simulated fleet.
type BusConfig struct {
	BusID        int    `json:"bus_id" yaml:"bus_id" validate:"gt=0"`
	LicensePlate string `json:"license_plate" yaml:"license_plate" validate:"required"`
	RouteID      int    `json:"route_id" yaml:"route_id" validate:"gt=0"`
	Capacity     int    `json:"capacity" yaml:"capacity" validate:"gt=0"`
}

// Document is the on-disk catalog format.
type Document struct {
	Routes []types.Route `yaml:"routes" validate:"min=1,dive"`
	Fleet  []BusConfig   `yaml:"fleet" validate:"min=1,dive"`
}

// Catalog holds the routes and fleet configuration. It is immutable after
// construction and safe for concurrent reads.
type Catalog struct {
	routes []types.Route
	fleet  []BusConfig
	byID   map[int]int
}

var validate = validator.New()

// New validates the routes and fleet and builds a catalog. Missing stop types
// default to major for the terminals and intermediate elsewhere; a missing
// distance is filled from the polyline length.
func New(routes []types.Route, fleet []BusConfig) (*Catalog, error) {
	doc := Document{Routes: routes, Fleet: fleet}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c := &Catalog{
		routes: make([]types.Route, len(routes)),
		fleet:  append([]BusConfig(nil), fleet...),
		byID:   make(map[int]int, len(routes)),
	}

	for i, r := range routes {
		if _, dup := c.byID[r.RouteID]; dup {
			return nil, fmt.Errorf("invalid catalog: duplicate route_id %d", r.RouteID)
		}

		r.Stops = append([]types.Stop(nil), r.Stops...)
		for j := range r.Stops {
			if r.Stops[j].Type != "" {
				continue
			}
			if j == 0 || j == len(r.Stops)-1 {
				r.Stops[j].Type = types.StopMajor
			} else {
				r.Stops[j].Type = types.StopIntermediate
			}
		}
		if r.DistanceKM == 0 {
			r.DistanceKM = geo.PathLengthKM(r.Coordinates())
		}

		c.routes[i] = r
		c.byID[r.RouteID] = i
	}

	seen := make(map[int]bool, len(fleet))
	for _, b := range fleet {
		if seen[b.BusID] {
			return nil, fmt.Errorf("invalid catalog: duplicate bus_id %d", b.BusID)
		}
		seen[b.BusID] = true
		if _, ok := c.byID[b.RouteID]; !ok {
			return nil, fmt.Errorf("invalid catalog: bus %d references unknown route %d", b.BusID, b.RouteID)
		}
	}

	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultRoutes, defaultFleet)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Routes, doc.Fleet)
}

// Load resolves a catalog source: empty for the built-in catalog, an http(s)
// URL fetched once, or a local file path.
func Load(ctx context.Context, source string) (*Catalog, error) {
	switch {
	case source == "":
		return Default(), nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err := NewFetcher().Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return Parse(data)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("catalog file %s not found", source)
			}
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		return Parse(data)
	}
}

// Routes returns a copy of the routes in catalog order.
func (c *Catalog) Routes() []types.Route {
	return append([]types.Route(nil), c.routes...)
}

// Route looks up a route by id. The returned route must not be modified.
func (c *Catalog) Route(id int) (*types.Route, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.routes[idx], true
}

// RouteIDs returns the route ids in ascending order.
func (c *Catalog) RouteIDs() []int {
	ids := make([]int, 0, len(c.routes))
	for _, r := range c.routes {
		ids = append(ids, r.RouteID)
	}
	sort.Ints(ids)
	return ids
}

func (c *Catalog) Fleet() []BusConfig {
	return append([]BusConfig(nil), c.fleet...)
}
