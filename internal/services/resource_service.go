package services

import (
	"context"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/pkg/errors"
)

// ResourceService owns the per-village ledger. Quantities never go negative
// and never exceed the ledger capacity.
type ResourceService struct {
	*base
}

// Add credits deltas, discarding whatever exceeds capacity. Returns the
// amounts actually stored.
func (s *ResourceService) Add(ctx context.Context, villageID uint, deltas models.ResourceMap) (models.ResourceMap, error) {
	if err := validateAmounts(deltas); err != nil {
		return nil, err
	}
	var applied models.ResourceMap
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		applied, err = s.addTx(tx, deltas)
		return err
	})
	return applied, err
}

// RemoveOrFail debits every cost or nothing.
func (s *ResourceService) RemoveOrFail(ctx context.Context, villageID uint, costs models.ResourceMap) error {
	if err := validateAmounts(costs); err != nil {
		return err
	}
	return s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		return s.removeTx(tx, costs)
	})
}

// SpendWithRefund credits floor(total*percent/100) of each kind.
func (s *ResourceService) SpendWithRefund(ctx context.Context, villageID uint, totalCost models.ResourceMap, refundPercent int) (models.ResourceMap, error) {
	if err := validateAmounts(totalCost); err != nil {
		return nil, err
	}
	if refundPercent < 0 || refundPercent > 100 {
		return nil, errors.Validation("refund percent must be within 0..100")
	}
	var refunded models.ResourceMap
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		refunded, err = s.refundTx(tx, totalCost, refundPercent)
		return err
	})
	return refunded, err
}

func (s *ResourceService) Balance(ctx context.Context, villageID uint) (*models.ResourceLedger, error) {
	var ledger *models.ResourceLedger
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		ledger, err = tx.Ledger()
		return err
	})
	return ledger, err
}

func (s *ResourceService) addTx(tx repositories.Tx, deltas models.ResourceMap) (models.ResourceMap, error) {
	ledger, err := tx.Ledger()
	if err != nil {
		return nil, err
	}
	applied := applyAdd(ledger, deltas)
	if err := tx.SaveLedger(ledger); err != nil {
		return nil, err
	}
	return applied, nil
}

func (s *ResourceService) removeTx(tx repositories.Tx, costs models.ResourceMap) error {
	ledger, err := tx.Ledger()
	if err != nil {
		return err
	}
	if err := applyRemove(ledger, costs); err != nil {
		return err
	}
	return tx.SaveLedger(ledger)
}

func (s *ResourceService) refundTx(tx repositories.Tx, totalCost models.ResourceMap, refundPercent int) (models.ResourceMap, error) {
	return s.addTx(tx, refundOf(totalCost, refundPercent))
}

// applyAdd sets each quantity to min(current+delta, capacity).
func applyAdd(ledger *models.ResourceLedger, deltas models.ResourceMap) models.ResourceMap {
	if ledger.Quantities == nil {
		ledger.Quantities = models.ResourceMap{}
	}
	applied := models.ResourceMap{}
	for kind, delta := range deltas {
		if delta <= 0 {
			continue
		}
		current := ledger.Quantities[kind]
		next := ledger.Capacity
		if delta < ledger.Capacity-current {
			next = current + delta
		}
		ledger.Quantities[kind] = next
		if next > current {
			applied[kind] = next - current
		}
	}
	return applied
}

// applyRemove checks every kind first and mutates only when all are covered.
func applyRemove(ledger *models.ResourceLedger, costs models.ResourceMap) error {
	missing := map[string]int64{}
	for kind, cost := range costs {
		if have := ledger.Quantities[kind]; have < cost {
			missing[string(kind)] = cost - have
		}
	}
	if len(missing) > 0 {
		return errors.InsufficientResources(missing)
	}
	for kind, cost := range costs {
		if cost == 0 {
			continue
		}
		ledger.Quantities[kind] -= cost
	}
	return nil
}

func refundOf(totalCost models.ResourceMap, refundPercent int) models.ResourceMap {
	refund := models.ResourceMap{}
	for kind, amount := range totalCost {
		if v := models.Percent(amount, refundPercent); v > 0 {
			refund[kind] = v
		}
	}
	return refund
}

// clampToCapacity discards stock above a lowered ceiling.
func clampToCapacity(ledger *models.ResourceLedger) {
	for kind, q := range ledger.Quantities {
		if q > ledger.Capacity {
			ledger.Quantities[kind] = ledger.Capacity
		}
	}
}

func validateAmounts(m models.ResourceMap) error {
	if err := m.Validate(); err != nil {
		return errors.Validation(err.Error())
	}
	return nil
}
