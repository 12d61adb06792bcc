package services

import (
	"context"
	"fmt"

	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/mroshb/colony_engine/pkg/logger"
)

// Placement selects a grid cell for a new building.
type Placement struct {
	Auto bool
	X, Y int
}

// AutoPlace asks the engine to pick a free cell on the spiral.
var AutoPlace = Placement{Auto: true}

func At(x, y int) Placement {
	return Placement{X: x, Y: y}
}

// Rate is the hourly output of one instance.
type Rate struct {
	Resource        models.ResourceKind
	AmountPerHour   int64
	StorageCapacity int64
}

type BuildingService struct {
	*base
	resources     *ResourceService
	research      *ResearchService
	refundPercent int
	gridSize      int
}

func (s *BuildingService) List(ctx context.Context, villageID uint) ([]models.BuildingInstance, error) {
	var out []models.BuildingInstance
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		out, err = tx.Buildings()
		return err
	})
	return out, err
}

func (s *BuildingService) Build(ctx context.Context, villageID uint, kindKey string, place Placement) (*models.BuildingInstance, error) {
	kind, ok := s.catalog.Building(kindKey)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("building kind %q not found", kindKey))
	}
	if !place.Auto && !inGrid(cell{X: place.X, Y: place.Y}, s.gridSize) {
		return nil, errors.Validation(fmt.Sprintf("position (%d, %d) is outside the grid", place.X, place.Y))
	}

	var built *models.BuildingInstance
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		instances, err := tx.Buildings()
		if err != nil {
			return err
		}

		count := 0
		for _, b := range instances {
			if b.KindKey == kind.Key {
				count++
			}
		}
		if count >= kind.MaxInstances {
			return errors.Precondition(errors.ReasonInstanceLimitReached,
				fmt.Sprintf("maximum of %d %s reached", kind.MaxInstances, kind.Key))
		}

		if err := s.checkRequirements(tx, kind, instances); err != nil {
			return err
		}
		if village := tx.Village(); village.Level < kind.UnlockLevel {
			return errors.Precondition(errors.ReasonVillageLevelTooLow,
				fmt.Sprintf("%s requires village level %d", kind.Key, kind.UnlockLevel)).
				WithDetail("required_level", kind.UnlockLevel)
		}

		if err := s.resources.removeTx(tx, kind.Cost); err != nil {
			return err
		}

		occupied := make(map[cell]bool, len(instances))
		for _, b := range instances {
			occupied[cell{X: b.X, Y: b.Y}] = true
		}
		pos := cell{X: place.X, Y: place.Y}
		if place.Auto {
			var found bool
			if pos, found = nextSpiralCell(occupied, s.gridSize); !found {
				return errors.Invariant("village grid is full")
			}
		} else if occupied[pos] {
			return errors.Precondition(errors.ReasonPositionOccupied,
				fmt.Sprintf("position (%d, %d) is occupied", pos.X, pos.Y))
		}

		built = &models.BuildingInstance{
			KindKey: kind.Key,
			X:       pos.X,
			Y:       pos.Y,
			Level:   1,
			Active:  true,
			BuiltAt: s.clock.Now(),
		}
		if err := tx.CreateBuilding(built); err != nil {
			return err
		}
		if err := s.recomputeCapacityTx(tx, ev); err != nil {
			return err
		}
		return ev.emit(models.EntityBuilding, built.ID, events.BuildingBuilt)
	})
	if err != nil {
		return nil, err
	}
	return built, nil
}

// checkRequirements needs one active instance of each required kind and every
// required research completed.
func (s *BuildingService) checkRequirements(tx repositories.Tx, kind *catalog.BuildingKind, instances []models.BuildingInstance) error {
	var missing []string
	for _, req := range kind.Requires.Buildings {
		found := false
		for _, b := range instances {
			if b.KindKey == req && b.Active {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, req)
		}
	}

	if len(kind.Requires.Research) > 0 {
		states, err := tx.ResearchStates()
		if err != nil {
			return err
		}
		completed := completedSet(states)
		for _, req := range kind.Requires.Research {
			if !completed[req] {
				missing = append(missing, req)
			}
		}
	}

	if len(missing) > 0 {
		return errors.Precondition(errors.ReasonPrerequisiteMissing,
			fmt.Sprintf("%s is missing prerequisites %v", kind.Key, missing)).
			WithDetail("keys", missing)
	}
	return nil
}

func (s *BuildingService) Upgrade(ctx context.Context, villageID, instanceID uint) (*models.BuildingInstance, error) {
	var inst *models.BuildingInstance
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if inst, err = tx.Building(instanceID); err != nil {
			return err
		}
		if inst.Level >= models.MaxBuildingLevel {
			return errors.Precondition(errors.ReasonMaxLevelReached,
				fmt.Sprintf("building is already at level %d", models.MaxBuildingLevel))
		}
		kind, err := s.kindOf(inst)
		if err != nil {
			return err
		}
		if err := s.resources.removeTx(tx, UpgradeCost(kind.Cost, inst.Level)); err != nil {
			return err
		}
		inst.Level++
		if err := tx.SaveBuilding(inst); err != nil {
			return err
		}
		if err := s.recomputeCapacityTx(tx, ev); err != nil {
			return err
		}
		return ev.emit(models.EntityBuilding, inst.ID, events.BuildingUpgraded)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Destroy removes the instance and refunds refundPercent of its cumulative
// cost. A negative percent uses the configured default.
func (s *BuildingService) Destroy(ctx context.Context, villageID, instanceID uint, refundPercent int) (models.ResourceMap, error) {
	if refundPercent < 0 {
		refundPercent = s.refundPercent
	}
	if refundPercent > 100 {
		return nil, errors.Validation("refund percent must be within 0..100")
	}

	var refunded models.ResourceMap
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		inst, err := tx.Building(instanceID)
		if err != nil {
			return err
		}
		kind, err := s.kindOf(inst)
		if err != nil {
			return err
		}
		if err := tx.DeleteBuilding(inst.ID); err != nil {
			return err
		}
		if err := s.recomputeCapacityTx(tx, ev); err != nil {
			return err
		}
		if refunded, err = s.resources.refundTx(tx, TotalCost(kind.Cost, inst.Level), refundPercent); err != nil {
			return err
		}
		return ev.emit(models.EntityBuilding, inst.ID, events.BuildingDestroyed)
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

func (s *BuildingService) ToggleActive(ctx context.Context, villageID, instanceID uint) (*models.BuildingInstance, error) {
	var inst *models.BuildingInstance
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if inst, err = tx.Building(instanceID); err != nil {
			return err
		}
		inst.Active = !inst.Active
		if err := tx.SaveBuilding(inst); err != nil {
			return err
		}
		if err := s.recomputeCapacityTx(tx, ev); err != nil {
			return err
		}
		return ev.emit(models.EntityBuilding, inst.ID, events.BuildingToggled)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// AssignWorkers sets the number of villagers staffing an instance.
func (s *BuildingService) AssignWorkers(ctx context.Context, villageID, instanceID uint, workers int) (*models.BuildingInstance, error) {
	if workers < 0 || workers > models.MaxWorkers {
		return nil, errors.Validation(fmt.Sprintf("workers must be within 0..%d", models.MaxWorkers))
	}
	var inst *models.BuildingInstance
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if inst, err = tx.Building(instanceID); err != nil {
			return err
		}
		inst.Workers = workers
		if err := tx.SaveBuilding(inst); err != nil {
			return err
		}
		return ev.emit(models.EntityBuilding, inst.ID, events.BuildingStaffed)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ProductionRate is the hourly yield of an instance with the given staff.
// Kinds without a production descriptor report ok=false.
func (s *BuildingService) ProductionRate(inst *models.BuildingInstance, assignedWorkers int) (Rate, bool) {
	kind, ok := s.catalog.Building(inst.KindKey)
	if !ok || kind.Production == nil {
		return Rate{}, false
	}
	return ProductionRate(kind.Production, inst.Level, assignedWorkers), true
}

// ProductionRate computes floor(base*level*(1+0.1*workers)) and base storage*level.
func ProductionRate(p *catalog.Production, level, workers int) Rate {
	perLevel := models.MulAmount(p.AmountPerHour, int64(level))
	factor := int64(10 + workers)
	return Rate{
		Resource:        p.Resource,
		AmountPerHour:   models.AddAmounts(models.MulAmount(perLevel/10, factor), perLevel%10*factor/10),
		StorageCapacity: models.MulAmount(p.StorageCapacity, int64(level)),
	}
}

// UpgradeCost is floor(base*level*1.5) per kind, level being the current one.
func UpgradeCost(baseCost models.ResourceMap, level int) models.ResourceMap {
	cost := make(models.ResourceMap, len(baseCost))
	for kind, amount := range baseCost {
		paid := models.MulAmount(amount, int64(level))
		cost[kind] = models.AddAmounts(paid, paid/2)
	}
	return cost
}

// TotalCost is the build cost plus every upgrade paid to reach level.
func TotalCost(baseCost models.ResourceMap, level int) models.ResourceMap {
	total := baseCost.Clone()
	if total == nil {
		total = models.ResourceMap{}
	}
	for l := 1; l < level; l++ {
		total.Add(UpgradeCost(baseCost, l))
	}
	return total
}

func (s *BuildingService) kindOf(inst *models.BuildingInstance) (*catalog.BuildingKind, error) {
	kind, ok := s.catalog.Building(inst.KindKey)
	if !ok {
		return nil, errors.Invariant(fmt.Sprintf("building %d references unknown kind %q", inst.ID, inst.KindKey))
	}
	return kind, nil
}

// recomputeCapacityTx sets capacity to warehouse capacity plus the storage of
// active instances, discarding stock above a lowered ceiling.
func (s *BuildingService) recomputeCapacityTx(tx repositories.Tx, ev *eventLog) error {
	instances, err := tx.Buildings()
	if err != nil {
		return err
	}
	capacity := tx.Village().WarehouseCapacity
	for i := range instances {
		if !instances[i].Active {
			continue
		}
		if rate, ok := s.ProductionRate(&instances[i], instances[i].Workers); ok {
			capacity = models.AddAmounts(capacity, rate.StorageCapacity)
		}
	}

	ledger, err := tx.Ledger()
	if err != nil {
		return err
	}
	if ledger.Capacity == capacity {
		return nil
	}
	ledger.Capacity = capacity
	clampToCapacity(ledger)
	if err := tx.SaveLedger(ledger); err != nil {
		return err
	}
	return ev.emit(models.EntityLedger, ledger.ID, events.LedgerCapacity)
}

// ProduceVillage credits one hour of output from every active instance,
// scaled by the research production multiplier.
func (s *BuildingService) ProduceVillage(ctx context.Context, villageID uint) (models.ResourceMap, error) {
	var applied models.ResourceMap
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		instances, err := tx.Buildings()
		if err != nil {
			return err
		}
		bonuses, err := s.research.bonusesTx(tx)
		if err != nil {
			return err
		}

		yields := models.ResourceMap{}
		for i := range instances {
			inst := &instances[i]
			if !inst.Active {
				continue
			}
			rate, ok := s.ProductionRate(inst, inst.Workers)
			if !ok || rate.AmountPerHour == 0 {
				continue
			}
			yields[rate.Resource] = models.AddAmounts(yields[rate.Resource],
				models.AmountFromFloat(float64(rate.AmountPerHour)*bonuses.ProductionMultiplier))
		}
		if len(yields) == 0 {
			return nil
		}

		if err := s.recomputeCapacityTx(tx, ev); err != nil {
			return err
		}
		if applied, err = s.resources.addTx(tx, yields); err != nil {
			return err
		}
		ledger, err := tx.Ledger()
		if err != nil {
			return err
		}
		return ev.emit(models.EntityLedger, ledger.ID, events.LedgerProduced)
	})
	return applied, err
}

// ProducePass runs ProduceVillage for every village with an active instance.
// One village failing does not stop the others.
func (s *BuildingService) ProducePass(ctx context.Context) (PassStats, error) {
	var stats PassStats
	ids, err := s.store.ProducingVillages(ctx)
	if err != nil {
		return stats, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		applied, err := s.ProduceVillage(ctx, id)
		if err != nil {
			stats.Failed++
			logger.Error("Failed to produce resources", "village_id", id, "error", err)
			continue
		}
		stats.Processed++
		logger.Debug("Village production applied", "village_id", id, "total", applied.Total())
	}
	return stats, nil
}
