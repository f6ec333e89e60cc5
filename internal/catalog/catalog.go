package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const railwayPrefix = "odpt.Railway:"

// ErrUnknownRailway is returned when a railway id is not in the catalog
var ErrUnknownRailway = errors.New("unknown railway")

// Railway is one line shown on the dashboard
type Railway struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Title    string `yaml:"title" json:"title"`
	Color    string `yaml:"color" json:"color"`
	Icon     string `yaml:"icon" json:"icon,omitempty"`
	Operator string `yaml:"-" json:"operator"`
	Group    int    `yaml:"-" json:"group"`
}

// ShortID returns the id without the odpt.Railway: prefix
func (r Railway) ShortID() string {
	return strings.TrimPrefix(r.ID, railwayPrefix)
}

// Group is an operator and the railways it runs
type Group struct {
	Label    string    `yaml:"label" json:"label"`
	Operator string    `yaml:"operator" json:"operator"`
	Color    string    `yaml:"color" json:"color"`
	Railways []Railway `yaml:"railways" json:"railways"`
}

type file struct {
	ChallengeOperators []string          `yaml:"challenge_operators"`
	Groups             []Group           `yaml:"groups"`
	StationNames       map[string]string `yaml:"station_names"`
}

// Catalog is the read-only registry of railways and display metadata
type Catalog struct {
	groups       []Group
	railways     []Railway
	byID         map[string]int
	challenge    []string
	stationNames map[string]string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once per process
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(bytes.NewReader(defaultCatalog))
	})
	return defaultCat, defaultErr
}

// Load parses a catalog from YAML
func Load(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	c := &Catalog{
		byID:         make(map[string]int),
		challenge:    f.ChallengeOperators,
		stationNames: f.StationNames,
	}
	if c.stationNames == nil {
		c.stationNames = make(map[string]string)
	}

	for gi, g := range f.Groups {
		if g.Operator == "" {
			return nil, fmt.Errorf("group %q has no operator", g.Label)
		}
		if err := checkColor(g.Color); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Label, err)
		}
		for ri := range g.Railways {
			rw := &g.Railways[ri]
			if rw.ID == "" {
				return nil, fmt.Errorf("group %q has a railway without id", g.Label)
			}
			if _, dup := c.byID[rw.ID]; dup {
				return nil, fmt.Errorf("duplicate railway %s", rw.ID)
			}
			if err := checkColor(rw.Color); err != nil {
				return nil, fmt.Errorf("railway %s: %w", rw.ID, err)
			}
			if rw.Title == "" {
				rw.Title = rw.Name
			}
			rw.Operator = g.Operator
			rw.Group = gi

			c.byID[rw.ID] = len(c.railways)
			c.railways = append(c.railways, *rw)
		}
		c.groups = append(c.groups, g)
	}

	return c, nil
}

func checkColor(color string) error {
	if !strings.HasPrefix(color, "#") {
		return fmt.Errorf("invalid color %q", color)
	}
	return nil
}

// Railways returns every railway in catalog order
func (c *Catalog) Railways() []Railway {
	result := make([]Railway, len(c.railways))
	copy(result, c.railways)
	return result
}

// Groups returns the operator groups in catalog order
func (c *Catalog) Groups() []Group {
	result := make([]Group, len(c.groups))
	copy(result, c.groups)
	return result
}

// Railway looks up a railway by full or short id
func (c *Catalog) Railway(id string) (Railway, error) {
	if !strings.HasPrefix(id, railwayPrefix) {
		id = railwayPrefix + id
	}
	i, ok := c.byID[id]
	if !ok {
		return Railway{}, fmt.Errorf("%w: %s", ErrUnknownRailway, id)
	}
	return c.railways[i], nil
}

// RequiresChallenge reports whether an operator or railway id must be
// queried through the challenge scope
func (c *Catalog) RequiresChallenge(id string) bool {
	if id == "" {
		return false
	}
	for _, op := range c.challenge {
		if strings.Contains(id, op) {
			return true
		}
	}
	return false
}

// StationName returns the fallback display name for a station id token
func (c *Catalog) StationName(token string) (string, bool) {
	name, ok := c.stationNames[token]
	return name, ok
}

// OperatorOf derives the operator id from a railway id
// e.g. odpt.Railway:Toei.Mita -> odpt.Operator:Toei
func OperatorOf(railwayID string) (string, bool) {
	rest, ok := strings.CutPrefix(railwayID, railwayPrefix)
	if !ok {
		return "", false
	}
	op, _, _ := strings.Cut(rest, ".")
	if op == "" {
		return "", false
	}
	return "odpt.Operator:" + op, true
}
