package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

type ResourceKind string

const (
	// Village resources
	ResourceWater           ResourceKind = "water"
	ResourceWood            ResourceKind = "wood"
	ResourceStone           ResourceKind = "stone"
	ResourceMetal           ResourceKind = "metal"
	ResourceFood            ResourceKind = "food"
	ResourceWheat           ResourceKind = "wheat"
	ResourceMeat            ResourceKind = "meat"
	ResourceCloth           ResourceKind = "cloth"
	ResourceLeather         ResourceKind = "leather"
	ResourceHerb            ResourceKind = "herb"
	ResourceBook            ResourceKind = "book"
	ResourceGold            ResourceKind = "gold"
	ResourceSeeds           ResourceKind = "seeds"
	ResourceTools           ResourceKind = "tools"
	ResourceCotton          ResourceKind = "cotton"
	ResourceLinen           ResourceKind = "linen"
	ResourcePaper           ResourceKind = "paper"
	ResourceInk             ResourceKind = "ink"
	ResourceRareOre         ResourceKind = "rare_ore"
	ResourceKnowledgePoints ResourceKind = "knowledge_points"

	// Mission-only resources
	ResourceSurvivalKit         ResourceKind = "survival_kit"
	ResourceElectronicComponent ResourceKind = "electronic_component"
	ResourceExplosivePowder     ResourceKind = "explosive_powder"
	ResourceGem                 ResourceKind = "gem"
	ResourceResin               ResourceKind = "resin"
	ResourceArmorPlate          ResourceKind = "armor_plate"
	ResourceFuel                ResourceKind = "fuel"
	ResourceAmmunition          ResourceKind = "ammunition"
	ResourceMechanicalParts     ResourceKind = "mechanical_parts"
	ResourceAncientRelic        ResourceKind = "ancient_relic"
)

var resourceKinds = map[ResourceKind]bool{
	ResourceWater: true, ResourceWood: true, ResourceStone: true, ResourceMetal: true,
	ResourceFood: true, ResourceWheat: true, ResourceMeat: true, ResourceCloth: true,
	ResourceLeather: true, ResourceHerb: true, ResourceBook: true, ResourceGold: true,
	ResourceSeeds: true, ResourceTools: true, ResourceCotton: true, ResourceLinen: true,
	ResourcePaper: true, ResourceInk: true, ResourceRareOre: true, ResourceKnowledgePoints: true,

	ResourceSurvivalKit: true, ResourceElectronicComponent: true, ResourceExplosivePowder: true,
	ResourceGem: true, ResourceResin: true, ResourceArmorPlate: true, ResourceFuel: true,
	ResourceAmmunition: true, ResourceMechanicalParts: true, ResourceAncientRelic: true,
}

func (k ResourceKind) Valid() bool {
	return resourceKinds[k]
}

func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}

// ResourceMap maps a resource kind to an amount. Stored as JSON.
type ResourceMap map[ResourceKind]int64

func (m ResourceMap) Clone() ResourceMap {
	if m == nil {
		return nil
	}
	out := make(ResourceMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate rejects unknown kinds and negative amounts.
func (m ResourceMap) Validate() error {
	for k, v := range m {
		if !k.Valid() {
			return fmt.Errorf("unknown resource kind %q", k)
		}
		if v < 0 {
			return fmt.Errorf("negative amount %d for %s", v, k)
		}
	}
	return nil
}

func (m ResourceMap) Add(other ResourceMap) {
	for k, v := range other {
		m[k] = AddAmounts(m[k], v)
	}
}

func (m ResourceMap) Total() int64 {
	var total int64
	for _, v := range m {
		total = AddAmounts(total, v)
	}
	return total
}

// AddAmounts adds two non-negative amounts, saturating at math.MaxInt64.
func AddAmounts(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// MulAmount multiplies two non-negative amounts, saturating at math.MaxInt64.
func MulAmount(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// Percent returns floor(a*pct/100) for a >= 0 and 0 <= pct <= 100 without
// overflowing.
func Percent(a int64, pct int) int64 {
	p := int64(pct)
	return a/100*p + a%100*p/100
}

// AmountFromFloat truncates f, saturating at math.MaxInt64 and flooring at 0.
func AmountFromFloat(f float64) int64 {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// Kinds returns the keys in stable order.
func (m ResourceMap) Kinds() []ResourceKind {
	kinds := make([]ResourceKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (m ResourceMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ResourceMap) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil {
		return err
	}
	out := ResourceMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode resource map: %w", err)
		}
	}
	*m = out
	return nil
}

// ResourceLedger is the per-village resource store. Capacity is one ceiling
// applied to every kind individually.
type ResourceLedger struct {
	ID         uint        `gorm:"primaryKey"`
	VillageID  uint        `gorm:"uniqueIndex;not null"`
	Quantities ResourceMap `gorm:"type:jsonb;not null"`
	Capacity   int64       `gorm:"not null;default:1000"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime"`
}

func (ResourceLedger) TableName() string {
	return "resource_ledgers"
}

func (l *ResourceLedger) Clone() ResourceLedger {
	cp := *l
	cp.Quantities = l.Quantities.Clone()
	return cp
}
