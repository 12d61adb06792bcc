package services

import (
	"context"
	"testing"
	"time"

	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/clock"
	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/pkg/utils"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testBuildings() []catalog.BuildingKind {
	return []catalog.BuildingKind{
		{Key: "hut", Name: "Hut", Category: catalog.CategoryBase,
			Cost: models.ResourceMap{models.ResourceWood: 50}, MaxInstances: 2, UnlockLevel: 1},
		{Key: "quarry", Name: "Quarry", Category: catalog.CategoryProduction,
			Cost:         models.ResourceMap{models.ResourceStone: 100},
			Production:   &catalog.Production{Resource: models.ResourceStone, AmountPerHour: 10, StorageCapacity: 100},
			MaxInstances: 3, UnlockLevel: 1},
		{Key: "lumber_camp", Name: "Lumber Camp", Category: catalog.CategoryProduction,
			Cost:         models.ResourceMap{models.ResourceWood: 100},
			Production:   &catalog.Production{Resource: models.ResourceWood, AmountPerHour: 20},
			MaxInstances: 3, UnlockLevel: 1},
		{Key: "depot", Name: "Depot", Category: catalog.CategoryBase,
			Cost:         models.ResourceMap{models.ResourceWood: 10},
			Production:   &catalog.Production{StorageCapacity: 200},
			MaxInstances: 5, UnlockLevel: 1},
		{Key: "forge", Name: "Forge", Category: catalog.CategoryProduction,
			Cost:         models.ResourceMap{models.ResourceStone: 10},
			Requires:     catalog.Requirements{Buildings: []string{"quarry"}, Research: []string{"smithing"}},
			MaxInstances: 1, UnlockLevel: 1},
		{Key: "keep", Name: "Keep", Category: catalog.CategoryMilitary,
			Cost: models.ResourceMap{models.ResourceWood: 10}, MaxInstances: 1, UnlockLevel: 2},
	}
}

func testResearch() []catalog.ResearchNode {
	return []catalog.ResearchNode{
		{Key: "basics", Name: "Basics", Category: "science", DurationHours: 2,
			Cost:    models.ResourceMap{models.ResourceGold: 10},
			Effects: catalog.Effects{ProductionBonus: 50}},
		{Key: "lore", Name: "Lore", Category: "science", DurationHours: 1,
			Cost:    models.ResourceMap{models.ResourceGold: 10},
			Effects: catalog.Effects{ResearchSpeedBonus: 100}},
		{Key: "smithing", Name: "Smithing", Category: "economy", DurationHours: 1, Prerequisites: []string{"basics"},
			Cost:    models.ResourceMap{models.ResourceGold: 10},
			Effects: catalog.Effects{UnlocksBuildings: []string{"forge"}, UnlocksEquipment: []string{"iron_sword"}}},
		{Key: "tactics", Name: "Tactics", Category: "military", DurationHours: 4, Prerequisites: []string{"basics", "lore"},
			Cost:    models.ResourceMap{models.ResourceGold: 10},
			Effects: catalog.Effects{MissionSuccessBonus: 10, SpecialAbility: "tactical_advantage"}},
	}
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	engine   *Engine
	store    *repositories.MemoryStore
	clock    *clock.FakeClock
	roller   *utils.ScriptedRoller
	recorder *events.Recorder
	village  *models.Village
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.New(testBuildings(), testResearch())
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    repositories.NewMemoryStore(),
		clock:    clock.NewFake(epoch),
		roller:   &utils.ScriptedRoller{},
		recorder: &events.Recorder{},
	}
	f.engine = NewEngine(Deps{
		Store:     f.store,
		Catalog:   cat,
		Clock:     f.clock,
		Roller:    f.roller,
		Publisher: f.recorder,
		Settings:  DefaultSettings(),
	})
	f.village, err = f.engine.Villages.CreateVillage(f.ctx, NewVillage{OwnerID: 1, Name: "Testville"})
	require.NoError(t, err)
	return f
}

func (f *fixture) id() uint { return f.village.ID }

// setLedger replaces the ledger quantities.
func (f *fixture) setLedger(q models.ResourceMap) {
	f.t.Helper()
	err := f.store.WithVillage(f.ctx, f.id(), func(tx repositories.Tx) error {
		l, err := tx.Ledger()
		if err != nil {
			return err
		}
		l.Quantities = q.Clone()
		return tx.SaveLedger(l)
	})
	require.NoError(f.t, err)
}

func (f *fixture) ledger() *models.ResourceLedger {
	f.t.Helper()
	l, err := f.engine.Resources.Balance(f.ctx, f.id())
	require.NoError(f.t, err)
	return l
}

// addCharacter inserts a character with exact attributes.
func (f *fixture) addCharacter(name string, class models.CharacterClass, attrs models.Attributes) *models.Character {
	f.t.Helper()
	c := &models.Character{
		Name:       name,
		Class:      class,
		Level:      1,
		Attributes: attrs,
		MaxHP:      models.MaxHPFor(attrs.Endurance),
	}
	c.CurrentHP = c.MaxHP
	err := f.store.WithVillage(f.ctx, f.id(), func(tx repositories.Tx) error {
		return tx.CreateCharacter(c)
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) character(id uint) *models.Character {
	f.t.Helper()
	c, err := f.engine.Characters.Get(f.ctx, f.id(), id)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) setMorale(m int) {
	f.t.Helper()
	_, err := f.engine.Villages.SetMorale(f.ctx, f.id(), m)
	require.NoError(f.t, err)
}

func (f *fixture) researchStatus(key string) models.ResearchStatus {
	f.t.Helper()
	tree, err := f.engine.Research.Tree(f.ctx, f.id())
	require.NoError(f.t, err)
	for _, n := range tree {
		if n.Node.Key == key {
			return n.Status
		}
	}
	f.t.Fatalf("research %s not in tree", key)
	return 0
}

// completeResearch starts and force-completes a node.
func (f *fixture) completeResearch(key string) {
	f.t.Helper()
	_, err := f.engine.Research.Start(f.ctx, f.id(), key)
	require.NoError(f.t, err)
	_, err = f.engine.Research.Complete(f.ctx, f.id(), key, true)
	require.NoError(f.t, err)
}

func (f *fixture) updateCharacter(id uint, fn func(c *models.Character)) {
	f.t.Helper()
	err := f.store.WithVillage(f.ctx, f.id(), func(tx repositories.Tx) error {
		c, err := tx.Character(id)
		if err != nil {
			return err
		}
		fn(c)
		return tx.SaveCharacter(c)
	})
	require.NoError(f.t, err)
}
