package services

import (
	"math"
	"testing"

	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_InsufficientResourcesLeavesLedger(t *testing.T) {
	f := newFixture(t)
	f.setLedger(models.ResourceMap{models.ResourceWood: 40})

	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "hut", AutoPlace)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInsufficientResources)
	assert.Equal(t, map[string]int64{"wood": 10}, errors.MissingResources(err))

	assert.Equal(t, models.ResourceMap{models.ResourceWood: 40}, f.ledger().Quantities)
	list, err := f.engine.Buildings.List(f.ctx, f.id())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuild_AutoPlacementSpiralsFromCenter(t *testing.T) {
	f := newFixture(t)

	want := [][2]int{{50, 50}, {51, 50}, {51, 51}, {50, 51}, {49, 51}}
	for i, pos := range want {
		b, err := f.engine.Buildings.Build(f.ctx, f.id(), "depot", AutoPlace)
		require.NoError(t, err, "build %d", i)
		assert.Equal(t, pos[0], b.X, "build %d", i)
		assert.Equal(t, pos[1], b.Y, "build %d", i)
		assert.Equal(t, 1, b.Level)
		assert.True(t, b.Active)
	}
}

func TestNextSpiralCell_FullGrid(t *testing.T) {
	occupied := map[cell]bool{}
	for x := 0; x <= 2; x++ {
		for y := 0; y <= 2; y++ {
			occupied[cell{X: x, Y: y}] = true
		}
	}
	_, ok := nextSpiralCell(occupied, 2)
	assert.False(t, ok)

	delete(occupied, cell{X: 0, Y: 2})
	c, ok := nextSpiralCell(occupied, 2)
	require.True(t, ok)
	assert.Equal(t, cell{X: 0, Y: 2}, c)
}

func TestBuild_FullGridIsAnInvariantViolation(t *testing.T) {
	f := newFixture(t)
	f.engine.Buildings.gridSize = 1

	for i := 0; i < 4; i++ {
		_, err := f.engine.Buildings.Build(f.ctx, f.id(), "depot", AutoPlace)
		require.NoError(t, err, "build %d", i)
	}
	before := f.ledger().Quantities

	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "depot", AutoPlace)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
	assert.Equal(t, before, f.ledger().Quantities, "cost must be rolled back")

	list, err := f.engine.Buildings.List(f.ctx, f.id())
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestBuild_ExplicitPosition(t *testing.T) {
	f := newFixture(t)

	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "hut", At(3, 7))
	require.NoError(t, err)
	assert.Equal(t, 3, b.X)
	assert.Equal(t, 7, b.Y)

	before := f.ledger().Quantities
	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "hut", At(3, 7))
	assert.ErrorIs(t, err, errors.ErrPositionOccupied)
	assert.Equal(t, before, f.ledger().Quantities, "cost must be rolled back")

	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "hut", At(101, 0))
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "hut", At(0, -1))
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestBuild_InstanceLimit(t *testing.T) {
	f := newFixture(t)
	f.setLedger(models.ResourceMap{models.ResourceWood: 500})

	for i := 0; i < 2; i++ {
		_, err := f.engine.Buildings.Build(f.ctx, f.id(), "hut", AutoPlace)
		require.NoError(t, err)
	}
	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "hut", AutoPlace)
	assert.ErrorIs(t, err, errors.ErrInstanceLimit)
	assert.Equal(t, int64(400), f.ledger().Quantities[models.ResourceWood])
}

func TestBuild_UnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "castle", AutoPlace)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestBuild_Prerequisites(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "forge", AutoPlace)
	require.ErrorIs(t, err, errors.ErrPrerequisiteMissing)
	keys, ok := errors.Detail(err, "keys")
	require.True(t, ok)
	assert.Equal(t, []string{"quarry", "smithing"}, keys)

	quarry, err := f.engine.Buildings.Build(f.ctx, f.id(), "quarry", AutoPlace)
	require.NoError(t, err)
	f.completeResearch("basics")
	f.completeResearch("smithing")
	f.setLedger(models.ResourceMap{models.ResourceStone: 100})

	_, err = f.engine.Buildings.ToggleActive(f.ctx, f.id(), quarry.ID)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "forge", AutoPlace)
	require.ErrorIs(t, err, errors.ErrPrerequisiteMissing)
	keys, _ = errors.Detail(err, "keys")
	assert.Equal(t, []string{"quarry"}, keys, "inactive instances do not count")

	_, err = f.engine.Buildings.ToggleActive(f.ctx, f.id(), quarry.ID)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "forge", AutoPlace)
	require.NoError(t, err)
}

func TestBuild_VillageLevel(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "keep", AutoPlace)
	assert.True(t, errors.Is(err, errors.ErrCodePreconditionFailed))
	assert.ErrorIs(t, err, errors.ErrPreconditionFailed.WithReason(errors.ReasonVillageLevelTooLow))

	v, err := f.engine.Villages.AddXP(f.ctx, f.id(), 500)
	require.NoError(t, err)
	require.Equal(t, 2, v.Level)

	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "keep", AutoPlace)
	require.NoError(t, err)
}

func TestUpgrade_CostAndMaxLevel(t *testing.T) {
	f := newFixture(t)
	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "quarry", AutoPlace)
	require.NoError(t, err)

	costs := []int64{150, 300, 450, 600}
	for i, cost := range costs {
		f.setLedger(models.ResourceMap{models.ResourceStone: cost})
		b, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
		require.NoError(t, err, "upgrade %d", i)
		assert.Equal(t, i+2, b.Level)
		assert.Equal(t, int64(0), f.ledger().Quantities[models.ResourceStone])
	}

	f.setLedger(models.ResourceMap{models.ResourceStone: 1000})
	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
	assert.ErrorIs(t, err, errors.ErrMaxLevel)
	assert.Equal(t, int64(1000), f.ledger().Quantities[models.ResourceStone])
}

func TestUpgrade_Insufficient(t *testing.T) {
	f := newFixture(t)
	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "quarry", AutoPlace)
	require.NoError(t, err)

	f.setLedger(models.ResourceMap{models.ResourceStone: 149})
	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
	assert.ErrorIs(t, err, errors.ErrInsufficientResources)
	assert.Equal(t, map[string]int64{"stone": 1}, errors.MissingResources(err))
}

func TestDestroy_RefundsCumulativeCost(t *testing.T) {
	f := newFixture(t)
	f.setLedger(models.ResourceMap{models.ResourceWood: 550})

	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "lumber_camp", AutoPlace)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), f.ledger().Quantities[models.ResourceWood])

	refunded, err := f.engine.Buildings.Destroy(f.ctx, f.id(), b.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, models.ResourceMap{models.ResourceWood: 275}, refunded)
	assert.Equal(t, int64(275), f.ledger().Quantities[models.ResourceWood])

	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDestroy_DefaultPercent(t *testing.T) {
	f := newFixture(t)
	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "hut", AutoPlace)
	require.NoError(t, err)
	f.setLedger(models.ResourceMap{})

	refunded, err := f.engine.Buildings.Destroy(f.ctx, f.id(), b.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), refunded[models.ResourceWood])

	_, err = f.engine.Buildings.Destroy(f.ctx, f.id(), b.ID, 101)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCostFormulas(t *testing.T) {
	base := models.ResourceMap{models.ResourceStone: 100}
	assert.Equal(t, int64(300), UpgradeCost(base, 2)[models.ResourceStone])

	prev := int64(0)
	for level := 1; level < models.MaxBuildingLevel; level++ {
		c := UpgradeCost(base, level)[models.ResourceStone]
		assert.Greater(t, c, prev, "level %d", level)
		prev = c
	}

	total := TotalCost(models.ResourceMap{models.ResourceWood: 100}, 3)
	assert.Equal(t, int64(550), total[models.ResourceWood])
	assert.Equal(t, int64(100), TotalCost(models.ResourceMap{models.ResourceWood: 100}, 1)[models.ResourceWood])

	odd := UpgradeCost(models.ResourceMap{models.ResourceWood: 15}, 1)
	assert.Equal(t, int64(22), odd[models.ResourceWood], "floored")
}

func TestProductionRate(t *testing.T) {
	p := &catalog.Production{Resource: models.ResourceWood, AmountPerHour: 20, StorageCapacity: 100}

	tests := []struct {
		name        string
		level       int
		workers     int
		wantAmount  int64
		wantStorage int64
	}{
		{name: "Level 1 unstaffed", level: 1, workers: 0, wantAmount: 20, wantStorage: 100},
		{name: "Level 2 with 3 workers", level: 2, workers: 3, wantAmount: 52, wantStorage: 200},
		{name: "Level 5 fully staffed", level: 5, workers: 10, wantAmount: 200, wantStorage: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ProductionRate(p, tt.level, tt.workers)
			assert.Equal(t, tt.wantAmount, r.AmountPerHour)
			assert.Equal(t, tt.wantStorage, r.StorageCapacity)
			assert.Equal(t, models.ResourceWood, r.Resource)
		})
	}

	odd := ProductionRate(&catalog.Production{Resource: models.ResourceWood, AmountPerHour: 7}, 1, 1)
	assert.Equal(t, int64(7), odd.AmountPerHour)
}

func TestFormulas_SaturateInsteadOfWrapping(t *testing.T) {
	huge := models.ResourceMap{models.ResourceStone: math.MaxInt64 / 2}

	assert.Equal(t, int64(math.MaxInt64), UpgradeCost(huge, 4)[models.ResourceStone])
	assert.Equal(t, int64(math.MaxInt64), TotalCost(huge, models.MaxBuildingLevel)[models.ResourceStone])

	r := ProductionRate(&catalog.Production{
		Resource:        models.ResourceWood,
		AmountPerHour:   math.MaxInt64 / 3,
		StorageCapacity: math.MaxInt64 / 3,
	}, models.MaxBuildingLevel, 10)
	assert.Equal(t, int64(math.MaxInt64), r.StorageCapacity)
	assert.Positive(t, r.AmountPerHour)
}

func TestProductionRate_NoDescriptor(t *testing.T) {
	f := newFixture(t)
	_, ok := f.engine.Buildings.ProductionRate(&models.BuildingInstance{KindKey: "hut", Level: 1}, 0)
	assert.False(t, ok)
}

func TestCapacity_FollowsActiveStorage(t *testing.T) {
	f := newFixture(t)

	depot, err := f.engine.Buildings.Build(f.ctx, f.id(), "depot", AutoPlace)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), f.ledger().Capacity)

	f.setLedger(models.ResourceMap{models.ResourceWood: 1150, models.ResourceStone: 10})
	_, err = f.engine.Buildings.ToggleActive(f.ctx, f.id(), depot.ID)
	require.NoError(t, err)

	l := f.ledger()
	assert.Equal(t, int64(1000), l.Capacity)
	assert.Equal(t, int64(1000), l.Quantities[models.ResourceWood], "stock above the ceiling is lost")
	assert.Equal(t, int64(10), l.Quantities[models.ResourceStone])

	_, err = f.engine.Buildings.ToggleActive(f.ctx, f.id(), depot.ID)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), depot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1400), f.ledger().Capacity)

	_, err = f.engine.Buildings.Destroy(f.ctx, f.id(), depot.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), f.ledger().Capacity)
}

func TestAssignWorkers(t *testing.T) {
	f := newFixture(t)
	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "hut", AutoPlace)
	require.NoError(t, err)

	b, err = f.engine.Buildings.AssignWorkers(f.ctx, f.id(), b.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Workers)

	_, err = f.engine.Buildings.AssignWorkers(f.ctx, f.id(), b.ID, 11)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestProduceVillage(t *testing.T) {
	f := newFixture(t)
	quarry, err := f.engine.Buildings.Build(f.ctx, f.id(), "quarry", AutoPlace)
	require.NoError(t, err)
	lumber, err := f.engine.Buildings.Build(f.ctx, f.id(), "lumber_camp", AutoPlace)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Build(f.ctx, f.id(), "hut", AutoPlace)
	require.NoError(t, err)

	f.setLedger(models.ResourceMap{})
	applied, err := f.engine.Buildings.ProduceVillage(f.ctx, f.id())
	require.NoError(t, err)
	assert.Equal(t, models.ResourceMap{models.ResourceStone: 10, models.ResourceWood: 20}, applied)

	_, err = f.engine.Buildings.ToggleActive(f.ctx, f.id(), lumber.ID)
	require.NoError(t, err)
	_, err = f.engine.Buildings.AssignWorkers(f.ctx, f.id(), quarry.ID, 5)
	require.NoError(t, err)

	applied, err = f.engine.Buildings.ProduceVillage(f.ctx, f.id())
	require.NoError(t, err)
	assert.Equal(t, models.ResourceMap{models.ResourceStone: 15}, applied)

	f.setLedger(models.ResourceMap{models.ResourceGold: 10})
	f.completeResearch("basics")
	applied, err = f.engine.Buildings.ProduceVillage(f.ctx, f.id())
	require.NoError(t, err)
	assert.Equal(t, int64(22), applied[models.ResourceStone], "research bonus of 50% floored")
}

func TestProducePass(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Buildings.Build(f.ctx, f.id(), "lumber_camp", AutoPlace)
	require.NoError(t, err)
	f.setLedger(models.ResourceMap{})

	other, err := f.engine.Villages.CreateVillage(f.ctx, NewVillage{OwnerID: 2, Name: "Idle"})
	require.NoError(t, err)

	stats, err := f.engine.Buildings.ProducePass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int64(20), f.ledger().Quantities[models.ResourceWood])

	idle, err := f.engine.Resources.Balance(f.ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StartingResources(), idle.Quantities)
}

func TestBuild_EmitsEvents(t *testing.T) {
	f := newFixture(t)
	b, err := f.engine.Buildings.Build(f.ctx, f.id(), "depot", AutoPlace)
	require.NoError(t, err)
	_, err = f.engine.Buildings.Upgrade(f.ctx, f.id(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"village:created",
		"ledger:capacity_changed", "building:built",
		"ledger:capacity_changed", "building:upgraded",
	}, f.recorder.Transitions())

	feed, err := f.engine.Villages.Events(f.ctx, f.id(), 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "upgraded", feed[0].Transition)
	assert.Equal(t, f.id(), feed[0].VillageID)
	assert.NotEmpty(t, feed[0].EventID)
}
