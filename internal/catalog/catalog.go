package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mroshb/colony_engine/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const (
	CategoryBase       = "base"
	CategoryProduction = "production"
	CategoryMilitary   = "military"
	CategoryWellbeing  = "wellbeing"
	CategoryAutomation = "automation"
)

var buildingCategories = map[string]bool{
	CategoryBase: true, CategoryProduction: true, CategoryMilitary: true,
	CategoryWellbeing: true, CategoryAutomation: true,
}

var researchCategories = map[string]bool{
	"agriculture": true, "military": true, "economy": true, "science": true,
}

// Production describes what one level-1 instance yields per hour. Storage-only
// buildings leave Resource empty.
type Production struct {
	Resource        models.ResourceKind `yaml:"resource,omitempty"`
	AmountPerHour   int64               `yaml:"amount_per_hour"`
	StorageCapacity int64               `yaml:"storage_capacity"`
}

type Requirements struct {
	Buildings []string `yaml:"buildings,omitempty"`
	Research  []string `yaml:"research,omitempty"`
}

type BuildingKind struct {
	Key          string             `yaml:"key"`
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description,omitempty"`
	Category     string             `yaml:"category"`
	Cost         models.ResourceMap `yaml:"cost"`
	Production   *Production        `yaml:"production,omitempty"`
	Requires     Requirements       `yaml:"requires,omitempty"`
	MaxInstances int                `yaml:"max_instances"`
	UnlockLevel  int                `yaml:"unlock_level"`
}

// Effects are percentage bonuses plus unlock lists granted by a completed node.
type Effects struct {
	ProductionBonus        int      `yaml:"production_bonus,omitempty"`
	MissionSuccessBonus    int      `yaml:"mission_success_bonus,omitempty"`
	ConstructionSpeedBonus int      `yaml:"construction_speed_bonus,omitempty"`
	ResearchSpeedBonus     int      `yaml:"research_speed_bonus,omitempty"`
	UnlocksBuildings       []string `yaml:"unlocks_buildings,omitempty"`
	UnlocksEquipment       []string `yaml:"unlocks_equipment,omitempty"`
	SpecialAbility         string   `yaml:"special_ability,omitempty"`
}

type ResearchNode struct {
	Key           string             `yaml:"key"`
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description,omitempty"`
	Category      string             `yaml:"category"`
	Prerequisites []string           `yaml:"prerequisites,omitempty"`
	Cost          models.ResourceMap `yaml:"cost"`
	DurationHours float64            `yaml:"duration_hours"`
	Effects       Effects            `yaml:"effects"`
}

func (n *ResearchNode) Duration() time.Duration {
	return time.Duration(n.DurationHours * float64(time.Hour))
}

type document struct {
	Buildings []BuildingKind `yaml:"buildings"`
	Research  []ResearchNode `yaml:"research"`
}

// Catalog is the immutable static data shared by every village.
type Catalog struct {
	buildings     map[string]*BuildingKind
	research      map[string]*ResearchNode
	buildingOrder []string
	researchOrder []string
}

func New(buildings []BuildingKind, research []ResearchNode) (*Catalog, error) {
	c := &Catalog{
		buildings: make(map[string]*BuildingKind, len(buildings)),
		research:  make(map[string]*ResearchNode, len(research)),
	}
	for i := range research {
		n := research[i]
		if _, dup := c.research[n.Key]; dup {
			return nil, fmt.Errorf("duplicate research key %q", n.Key)
		}
		c.research[n.Key] = &n
		c.researchOrder = append(c.researchOrder, n.Key)
	}
	for i := range buildings {
		b := buildings[i]
		if _, dup := c.buildings[b.Key]; dup {
			return nil, fmt.Errorf("duplicate building key %q", b.Key)
		}
		c.buildings[b.Key] = &b
		c.buildingOrder = append(c.buildingOrder, b.Key)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Buildings, doc.Research)
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, falling back to the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(document{Buildings: c.Buildings(), Research: c.ResearchNodes()})
}

func (c *Catalog) Building(key string) (*BuildingKind, bool) {
	b, ok := c.buildings[key]
	return b, ok
}

func (c *Catalog) Research(key string) (*ResearchNode, bool) {
	n, ok := c.research[key]
	return n, ok
}

func (c *Catalog) Buildings() []BuildingKind {
	out := make([]BuildingKind, 0, len(c.buildingOrder))
	for _, k := range c.buildingOrder {
		out = append(out, *c.buildings[k])
	}
	return out
}

func (c *Catalog) ResearchNodes() []ResearchNode {
	out := make([]ResearchNode, 0, len(c.researchOrder))
	for _, k := range c.researchOrder {
		out = append(out, *c.research[k])
	}
	return out
}

// ResearchKeys returns node keys in declaration order.
func (c *Catalog) ResearchKeys() []string {
	return append([]string(nil), c.researchOrder...)
}

func (c *Catalog) validate() error {
	for _, key := range c.researchOrder {
		n := c.research[key]
		if n.Key == "" {
			return fmt.Errorf("research node with empty key")
		}
		if !researchCategories[n.Category] {
			return fmt.Errorf("research %s: unknown category %q", key, n.Category)
		}
		if err := n.Cost.Validate(); err != nil {
			return fmt.Errorf("research %s cost: %w", key, err)
		}
		if n.DurationHours <= 0 {
			return fmt.Errorf("research %s: duration must be positive", key)
		}
		for _, p := range n.Prerequisites {
			if _, ok := c.research[p]; !ok {
				return fmt.Errorf("research %s: unknown prerequisite %q", key, p)
			}
		}
		for _, b := range n.Effects.UnlocksBuildings {
			if _, ok := c.buildings[b]; !ok {
				return fmt.Errorf("research %s: unlocks unknown building %q", key, b)
			}
		}
	}
	if cycle := c.findCycle(); cycle != nil {
		return fmt.Errorf("research graph has a cycle: %v", cycle)
	}

	for _, key := range c.buildingOrder {
		b := c.buildings[key]
		if b.Key == "" {
			return fmt.Errorf("building kind with empty key")
		}
		if !buildingCategories[b.Category] {
			return fmt.Errorf("building %s: unknown category %q", key, b.Category)
		}
		if err := b.Cost.Validate(); err != nil {
			return fmt.Errorf("building %s cost: %w", key, err)
		}
		if b.MaxInstances < 1 {
			return fmt.Errorf("building %s: max_instances must be at least 1", key)
		}
		if b.UnlockLevel < 1 {
			return fmt.Errorf("building %s: unlock_level must be at least 1", key)
		}
		if p := b.Production; p != nil {
			if p.AmountPerHour < 0 || p.StorageCapacity < 0 {
				return fmt.Errorf("building %s: negative production", key)
			}
			if p.AmountPerHour > 0 && !p.Resource.Valid() {
				return fmt.Errorf("building %s: unknown produced resource %q", key, p.Resource)
			}
		}
		for _, req := range b.Requires.Buildings {
			if _, ok := c.buildings[req]; !ok || req == key {
				return fmt.Errorf("building %s: invalid required building %q", key, req)
			}
		}
		for _, req := range b.Requires.Research {
			if _, ok := c.research[req]; !ok {
				return fmt.Errorf("building %s: unknown required research %q", key, req)
			}
		}
	}
	return nil
}

// findCycle returns the keys on a prerequisite cycle, or nil.
func (c *Catalog) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(c.research))
	var stack []string
	var cycle []string

	var visit func(key string) bool
	visit = func(key string) bool {
		color[key] = grey
		stack = append(stack, key)
		for _, p := range c.research[key].Prerequisites {
			switch color[p] {
			case grey:
				for i, k := range stack {
					if k == p {
						cycle = append([]string(nil), stack[i:]...)
					}
				}
				return true
			case white:
				if visit(p) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[key] = black
		return false
	}

	keys := append([]string(nil), c.researchOrder...)
	sort.Strings(keys)
	for _, k := range keys {
		if color[k] == white && visit(k) {
			return cycle
		}
	}
	return nil
}
