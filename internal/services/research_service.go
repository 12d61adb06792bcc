package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/mroshb/colony_engine/pkg/logger"
)

// Bonuses is the fold of every completed node's effects. Multipliers start at 1.0.
type Bonuses struct {
	ProductionMultiplier float64
	MissionSuccessBonus  float64
	ConstructionSpeed    float64
	ResearchSpeed        float64
	UnlockedBuildings    []string
	UnlockedEquipment    []string
	SpecialAbilities     []string
}

func neutralBonuses() Bonuses {
	return Bonuses{ProductionMultiplier: 1, ConstructionSpeed: 1, ResearchSpeed: 1}
}

// TreeNode is one row of the tech tree view.
type TreeNode struct {
	Node      catalog.ResearchNode
	Status    models.ResearchStatus
	Progress  int
	Remaining time.Duration
}

type ResearchService struct {
	*base
	resources *ResourceService
}

// initTx creates one state per catalog node for a new village.
func (s *ResearchService) initTx(tx repositories.Tx) error {
	nodes := s.catalog.ResearchNodes()
	states := make([]models.ResearchState, 0, len(nodes))
	for _, n := range nodes {
		status := models.ResearchLocked
		if len(n.Prerequisites) == 0 {
			status = models.ResearchAvailable
		}
		states = append(states, models.ResearchState{NodeKey: n.Key, Status: status})
	}
	return tx.CreateResearchStates(states)
}

func (s *ResearchService) Start(ctx context.Context, villageID uint, key string) (*models.ResearchState, error) {
	node, ok := s.catalog.Research(key)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("research node %q not found", key))
	}

	var started *models.ResearchState
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		states, err := tx.ResearchStates()
		if err != nil {
			return err
		}
		var target *models.ResearchState
		for i := range states {
			if states[i].Status == models.ResearchInProgress {
				return errors.Precondition(errors.ReasonAlreadyResearching,
					fmt.Sprintf("%s is already being researched", states[i].NodeKey)).
					WithDetail("in_progress", states[i].NodeKey)
			}
			if states[i].NodeKey == key {
				target = &states[i]
			}
		}
		if target == nil {
			return errors.NotFound(fmt.Sprintf("research %q not initialized for village", key))
		}

		switch target.Status {
		case models.ResearchCompleted:
			return errors.Precondition(errors.ReasonNodeCompleted, fmt.Sprintf("%s is already completed", key))
		case models.ResearchLocked:
			if missing := missingPrerequisites(node, completedSet(states)); len(missing) > 0 {
				return errors.Precondition(errors.ReasonNodeLocked, fmt.Sprintf("%s is locked", key)).
					WithDetail("keys", missing)
			}
		}
		if missing := missingPrerequisites(node, completedSet(states)); len(missing) > 0 {
			return errors.Precondition(errors.ReasonPrerequisitesMissing,
				fmt.Sprintf("%s is missing prerequisites %v", key, missing)).
				WithDetail("keys", missing)
		}

		if err := s.resources.removeTx(tx, node.Cost); err != nil {
			return err
		}

		bonuses := foldBonuses(s.catalog, states)
		now := s.clock.Now()
		deadline := now.Add(scaledDuration(node.Duration(), bonuses.ResearchSpeed))
		target.Status = models.ResearchInProgress
		target.Progress = 0
		target.StartedAt = &now
		target.Deadline = &deadline
		target.CompletedAt = nil
		if err := tx.SaveResearchState(target); err != nil {
			return err
		}
		started = target
		return ev.emit(models.EntityResearch, target.ID, events.ResearchStarted)
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// Complete finishes an in-progress node and unlocks every locked node whose
// prerequisites are now all completed. Without force the deadline must have passed.
func (s *ResearchService) Complete(ctx context.Context, villageID uint, key string, force bool) ([]string, error) {
	var unlocked []string
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		unlocked, err = s.completeTx(tx, ev, key, force)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

func (s *ResearchService) completeTx(tx repositories.Tx, ev *eventLog, key string, force bool) ([]string, error) {
	states, err := tx.ResearchStates()
	if err != nil {
		return nil, err
	}
	target := findState(states, key)
	if target == nil {
		return nil, errors.NotFound(fmt.Sprintf("research %q not found", key))
	}
	if target.Status != models.ResearchInProgress {
		return nil, errors.Precondition(errors.ReasonNodeNotInProgress,
			fmt.Sprintf("%s is %s", key, target.Status))
	}
	now := s.clock.Now()
	if !force && target.Deadline != nil && now.Before(*target.Deadline) {
		return nil, errors.NotYetDue(target.Deadline.Sub(now))
	}

	target.Status = models.ResearchCompleted
	target.Progress = 100
	target.CompletedAt = &now
	if err := tx.SaveResearchState(target); err != nil {
		return nil, err
	}
	if err := ev.emit(models.EntityResearch, target.ID, events.ResearchCompleted); err != nil {
		return nil, err
	}

	completed := completedSet(states)
	var unlocked []string
	for i := range states {
		st := &states[i]
		if st.Status != models.ResearchLocked {
			continue
		}
		node, ok := s.catalog.Research(st.NodeKey)
		if !ok || len(missingPrerequisites(node, completed)) > 0 {
			continue
		}
		st.Status = models.ResearchAvailable
		if err := tx.SaveResearchState(st); err != nil {
			return nil, err
		}
		if err := ev.emit(models.EntityResearch, st.ID, events.ResearchUnlocked); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, st.NodeKey)
	}
	return unlocked, nil
}

// Cancel returns an in-progress node to AVAILABLE. The cost is not refunded.
func (s *ResearchService) Cancel(ctx context.Context, villageID uint, key string) error {
	return s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		states, err := tx.ResearchStates()
		if err != nil {
			return err
		}
		target := findState(states, key)
		if target == nil {
			return errors.NotFound(fmt.Sprintf("research %q not found", key))
		}
		if target.Status != models.ResearchInProgress {
			return errors.Precondition(errors.ReasonNodeNotInProgress,
				fmt.Sprintf("%s is %s", key, target.Status))
		}
		target.Status = models.ResearchAvailable
		target.Progress = 0
		target.StartedAt = nil
		target.Deadline = nil
		if err := tx.SaveResearchState(target); err != nil {
			return err
		}
		return ev.emit(models.EntityResearch, target.ID, events.ResearchCancelled)
	})
}

func (s *ResearchService) ActiveBonuses(ctx context.Context, villageID uint) (Bonuses, error) {
	var bonuses Bonuses
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		bonuses, err = s.bonusesTx(tx)
		return err
	})
	return bonuses, err
}

func (s *ResearchService) bonusesTx(tx repositories.Tx) (Bonuses, error) {
	states, err := tx.ResearchStates()
	if err != nil {
		return Bonuses{}, err
	}
	return foldBonuses(s.catalog, states), nil
}

// Tree lists every node with its status. Progress of an in-progress node is
// derived from elapsed time.
func (s *ResearchService) Tree(ctx context.Context, villageID uint) ([]TreeNode, error) {
	var tree []TreeNode
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		states, err := tx.ResearchStates()
		if err != nil {
			return err
		}
		now := s.clock.Now()
		byKey := make(map[string]models.ResearchState, len(states))
		for _, st := range states {
			byKey[st.NodeKey] = st
		}
		for _, node := range s.catalog.ResearchNodes() {
			st, ok := byKey[node.Key]
			if !ok {
				continue
			}
			row := TreeNode{Node: node, Status: st.Status, Progress: st.Progress}
			if st.Status == models.ResearchInProgress && st.StartedAt != nil && st.Deadline != nil {
				row.Progress, row.Remaining = progressAt(*st.StartedAt, *st.Deadline, now)
			}
			tree = append(tree, row)
		}
		return nil
	})
	return tree, err
}

// CompleteDue completes every in-progress node whose deadline has passed.
func (s *ResearchService) CompleteDue(ctx context.Context) (PassStats, error) {
	var stats PassStats
	due, err := s.store.DueResearch(ctx, s.clock.Now())
	if err != nil {
		return stats, err
	}
	for _, ref := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		unlocked, err := s.Complete(ctx, ref.VillageID, ref.NodeKey, false)
		switch {
		case err == nil:
			stats.Processed++
			logger.Info("Research completed", "village_id", ref.VillageID, "node", ref.NodeKey, "unlocked", unlocked)
		case isStale(err):
			stats.Skipped++
		default:
			stats.Failed++
			logger.Error("Failed to complete research", "village_id", ref.VillageID, "node", ref.NodeKey, "error", err)
		}
	}
	return stats, nil
}

func foldBonuses(cat *catalog.Catalog, states []models.ResearchState) Bonuses {
	b := neutralBonuses()
	var production, mission, construction, research int
	for _, st := range states {
		if st.Status != models.ResearchCompleted {
			continue
		}
		node, ok := cat.Research(st.NodeKey)
		if !ok {
			continue
		}
		fx := node.Effects
		production += fx.ProductionBonus
		mission += fx.MissionSuccessBonus
		construction += fx.ConstructionSpeedBonus
		research += fx.ResearchSpeedBonus
		b.UnlockedBuildings = append(b.UnlockedBuildings, fx.UnlocksBuildings...)
		b.UnlockedEquipment = append(b.UnlockedEquipment, fx.UnlocksEquipment...)
		if fx.SpecialAbility != "" {
			b.SpecialAbilities = append(b.SpecialAbilities, fx.SpecialAbility)
		}
	}
	b.ProductionMultiplier += float64(production) / 100
	b.MissionSuccessBonus = float64(mission) / 100
	b.ConstructionSpeed += float64(construction) / 100
	b.ResearchSpeed += float64(research) / 100
	sort.Strings(b.UnlockedBuildings)
	sort.Strings(b.UnlockedEquipment)
	return b
}

func scaledDuration(d time.Duration, speed float64) time.Duration {
	if speed <= 0 {
		return d
	}
	return time.Duration(float64(d) / speed)
}

func progressAt(started, deadline, now time.Time) (int, time.Duration) {
	total := deadline.Sub(started)
	if total <= 0 || !now.Before(deadline) {
		return 100, 0
	}
	elapsed := now.Sub(started)
	if elapsed < 0 {
		elapsed = 0
	}
	return int(elapsed * 100 / total), deadline.Sub(now)
}

func completedSet(states []models.ResearchState) map[string]bool {
	done := make(map[string]bool, len(states))
	for _, st := range states {
		if st.Status == models.ResearchCompleted {
			done[st.NodeKey] = true
		}
	}
	return done
}

func missingPrerequisites(node *catalog.ResearchNode, completed map[string]bool) []string {
	var missing []string
	for _, p := range node.Prerequisites {
		if !completed[p] {
			missing = append(missing, p)
		}
	}
	return missing
}

func findState(states []models.ResearchState, key string) *models.ResearchState {
	for i := range states {
		if states[i].NodeKey == key {
			return &states[i]
		}
	}
	return nil
}

// isStale reports a scheduler target that another writer already moved on.
func isStale(err error) bool {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Reason {
	case errors.ReasonNodeNotInProgress, errors.ReasonInvalidTransition, errors.ReasonNotYetDue:
		return true
	}
	return appErr.Code == errors.ErrCodeNotFound
}
