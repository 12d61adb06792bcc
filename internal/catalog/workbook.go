package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetBuildings = "buildings"
	SheetResearch  = "research"
)

var buildingColumns = []string{
	"key", "name", "category", "cost", "produces", "amount_per_hour", "storage_capacity",
	"requires_buildings", "requires_research", "max_instances", "unlock_level", "description",
}

var researchColumns = []string{
	"key", "name", "category", "prerequisites", "cost", "duration_hours",
	"production_bonus", "mission_success_bonus", "construction_speed_bonus", "research_speed_bonus",
	"unlocks_buildings", "unlocks_equipment", "special_ability", "description",
}

// ReadWorkbook builds a catalog from a spreadsheet with a "buildings" and a
// "research" sheet. The first row of each sheet is a header and is skipped.
func ReadWorkbook(r io.Reader) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	buildingRows, err := f.GetRows(SheetBuildings)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetBuildings, err)
	}
	researchRows, err := f.GetRows(SheetResearch)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetResearch, err)
	}

	var buildings []BuildingKind
	for i, row := range buildingRows {
		if i == 0 || cell(row, 0) == "" { // Skip header or blank rows
			continue
		}
		b, err := parseBuildingRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", SheetBuildings, i+1, err)
		}
		buildings = append(buildings, b)
	}

	var research []ResearchNode
	for i, row := range researchRows {
		if i == 0 || cell(row, 0) == "" {
			continue
		}
		n, err := parseResearchRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", SheetResearch, i+1, err)
		}
		research = append(research, n)
	}

	return New(buildings, research)
}

// WriteWorkbook exports the catalog in the layout ReadWorkbook accepts.
func (c *Catalog) WriteWorkbook(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetBuildings); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetResearch); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := writeRow(f, SheetBuildings, 1, toRow(buildingColumns)); err != nil {
		return err
	}
	for i, b := range c.Buildings() {
		var produces string
		var amount, storage int64
		if b.Production != nil {
			produces = string(b.Production.Resource)
			amount = b.Production.AmountPerHour
			storage = b.Production.StorageCapacity
		}
		row := []interface{}{
			b.Key, b.Name, b.Category, formatCost(b.Cost), produces, amount, storage,
			strings.Join(b.Requires.Buildings, ","), strings.Join(b.Requires.Research, ","),
			b.MaxInstances, b.UnlockLevel, b.Description,
		}
		if err := writeRow(f, SheetBuildings, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, SheetResearch, 1, toRow(researchColumns)); err != nil {
		return err
	}
	for i, n := range c.ResearchNodes() {
		e := n.Effects
		row := []interface{}{
			n.Key, n.Name, n.Category, strings.Join(n.Prerequisites, ","), formatCost(n.Cost), n.DurationHours,
			e.ProductionBonus, e.MissionSuccessBonus, e.ConstructionSpeedBonus, e.ResearchSpeedBonus,
			strings.Join(e.UnlocksBuildings, ","), strings.Join(e.UnlocksEquipment, ","), e.SpecialAbility, n.Description,
		}
		if err := writeRow(f, SheetResearch, i+2, row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cellName, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cellName, &values)
}

func toRow(cols []string) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

func parseBuildingRow(row []string) (BuildingKind, error) {
	cost, err := parseCost(cell(row, 3))
	if err != nil {
		return BuildingKind{}, err
	}
	amount, err := parseInt(cell(row, 5))
	if err != nil {
		return BuildingKind{}, fmt.Errorf("amount_per_hour: %w", err)
	}
	storage, err := parseInt(cell(row, 6))
	if err != nil {
		return BuildingKind{}, fmt.Errorf("storage_capacity: %w", err)
	}
	maxInstances, err := parseInt(cell(row, 9))
	if err != nil {
		return BuildingKind{}, fmt.Errorf("max_instances: %w", err)
	}
	unlockLevel, err := parseInt(cell(row, 10))
	if err != nil {
		return BuildingKind{}, fmt.Errorf("unlock_level: %w", err)
	}

	b := BuildingKind{
		Key:          cell(row, 0),
		Name:         cell(row, 1),
		Category:     cell(row, 2),
		Cost:         cost,
		MaxInstances: int(maxInstances),
		UnlockLevel:  int(unlockLevel),
		Description:  cell(row, 11),
		Requires: Requirements{
			Buildings: splitList(cell(row, 7)),
			Research:  splitList(cell(row, 8)),
		},
	}
	if produces := cell(row, 4); produces != "" || amount > 0 || storage > 0 {
		b.Production = &Production{
			Resource:        models.ResourceKind(produces),
			AmountPerHour:   amount,
			StorageCapacity: storage,
		}
	}
	return b, nil
}

func parseResearchRow(row []string) (ResearchNode, error) {
	cost, err := parseCost(cell(row, 4))
	if err != nil {
		return ResearchNode{}, err
	}
	hours, err := strconv.ParseFloat(cell(row, 5), 64)
	if err != nil {
		return ResearchNode{}, fmt.Errorf("duration_hours: %w", err)
	}
	bonuses := make([]int, 4)
	for i := range bonuses {
		v, err := parseInt(cell(row, 6+i))
		if err != nil {
			return ResearchNode{}, fmt.Errorf("%s: %w", researchColumns[6+i], err)
		}
		bonuses[i] = int(v)
	}

	return ResearchNode{
		Key:           cell(row, 0),
		Name:          cell(row, 1),
		Category:      cell(row, 2),
		Prerequisites: splitList(cell(row, 3)),
		Cost:          cost,
		DurationHours: hours,
		Description:   cell(row, 13),
		Effects: Effects{
			ProductionBonus:        bonuses[0],
			MissionSuccessBonus:    bonuses[1],
			ConstructionSpeedBonus: bonuses[2],
			ResearchSpeedBonus:     bonuses[3],
			UnlocksBuildings:       splitList(cell(row, 10)),
			UnlocksEquipment:       splitList(cell(row, 11)),
			SpecialAbility:         cell(row, 12),
		},
	}, nil
}

// parseCost reads "wood:50,stone:20".
func parseCost(s string) (models.ResourceMap, error) {
	cost := models.ResourceMap{}
	for _, part := range splitList(s) {
		kind, amount, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid cost entry %q", part)
		}
		k, err := models.ParseResourceKind(strings.TrimSpace(kind))
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", k, err)
		}
		cost[k] = v
	}
	return cost, nil
}

func formatCost(cost models.ResourceMap) string {
	parts := make([]string, 0, len(cost))
	for _, k := range cost.Kinds() {
		parts = append(parts, fmt.Sprintf("%s:%d", k, cost[k]))
	}
	return strings.Join(parts, ",")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
