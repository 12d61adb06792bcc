package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mroshb/colony_engine/internal/clock"
	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/internal/scheduler"
	"github.com/mroshb/colony_engine/internal/services"
	"github.com/mroshb/colony_engine/pkg/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	hours     int
	seed      uint64
	buildings []string
	research  string
	mission   bool
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a fresh village in memory for a number of hours",
		Long: `Founds a village in an in-memory store, constructs the requested buildings,
optionally starts research and a generated mission, then runs every scheduler
pass once per simulated hour. Nothing touches the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.hours, "hours", 24, "simulated hours")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed")
	cmd.Flags().StringSliceVar(&opts.buildings, "build", []string{"well", "sawmill", "farm"}, "building kinds to construct")
	cmd.Flags().StringVar(&opts.research, "research", "", "research node to start")
	cmd.Flags().BoolVar(&opts.mission, "mission", false, "send a generated mission")
	return cmd
}

func runSimulation(ctx context.Context, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	clk := clock.NewFake(time.Now())
	recorder := &events.Recorder{}
	engine := services.NewEngine(services.Deps{
		Store:     repositories.NewMemoryStore(),
		Catalog:   cat,
		Clock:     clk,
		Roller:    utils.NewSeededRoller(opts.seed, opts.seed^0x9e3779b97f4a7c15),
		Publisher: recorder,
		Settings:  services.DefaultSettings(),
	})

	village, err := engine.Villages.CreateVillage(ctx, services.NewVillage{
		OwnerID: 1,
		Name:    "Dry Run",
		Player:  &services.NewCharacter{Name: "Founder", Class: models.ClassLeader},
	})
	if err != nil {
		return err
	}

	banner("Setup")
	for _, key := range opts.buildings {
		inst, err := engine.Buildings.Build(ctx, village.ID, key, services.AutoPlace)
		if err != nil {
			errorColor.Printf("✗ build %s: %v\n", key, err)
			continue
		}
		successColor.Printf("✓ built %s at (%d,%d)\n", key, inst.X, inst.Y)
	}
	if opts.research != "" {
		if _, err := engine.Research.Start(ctx, village.ID, opts.research); err != nil {
			errorColor.Printf("✗ research %s: %v\n", opts.research, err)
		} else {
			successColor.Printf("✓ researching %s\n", opts.research)
		}
	}
	if opts.mission {
		if err := sendMission(ctx, engine, village.ID); err != nil {
			errorColor.Printf("✗ mission: %v\n", err)
		}
	}

	sched := scheduler.New(engine, scheduler.DefaultIntervals())
	totals := map[scheduler.Pass]services.PassStats{}
	for h := 0; h < opts.hours; h++ {
		clk.Advance(time.Hour)
		stats, err := sched.RunAll(ctx)
		if err != nil {
			return err
		}
		for p, s := range stats {
			t := totals[p]
			t.Processed += s.Processed
			t.Skipped += s.Skipped
			t.Failed += s.Failed
			totals[p] = t
		}
	}

	banner(fmt.Sprintf("After %d hours", opts.hours))
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Pass", "Processed", "Skipped", "Failed"}))
	for _, p := range scheduler.Passes() {
		s := totals[p]
		table.Append([]string{string(p), itoa(s.Processed), itoa(s.Skipped), itoa(s.Failed)})
	}
	table.Render()

	if err := printLedger(ctx, engine, village.ID); err != nil {
		return err
	}
	fmt.Printf("\n📜 %d events recorded\n", len(recorder.Events()))
	return nil
}

func sendMission(ctx context.Context, engine *services.Engine, villageID uint) error {
	scout, err := engine.Characters.Create(ctx, villageID, services.NewCharacter{Name: "Scout", Class: models.ClassScout})
	if err != nil {
		return err
	}
	roster, err := engine.Characters.List(ctx, villageID)
	if err != nil {
		return err
	}
	ids := []uint{scout.ID}
	for _, c := range roster {
		if c.IsPlayer {
			ids = append(ids, c.ID)
		}
	}

	plan, err := engine.Missions.Generate(models.MissionHarvest)
	if err != nil {
		return err
	}
	m, err := engine.Missions.Create(ctx, villageID, plan, ids)
	if err != nil {
		return err
	}
	if _, err := engine.Missions.Start(ctx, villageID, m.ID); err != nil {
		return err
	}
	rate, err := engine.Missions.SuccessRate(ctx, villageID, m.ID)
	if err != nil {
		return err
	}
	successColor.Printf("✓ mission %q (difficulty %d, %dm, %.0f%% success)\n",
		m.Name, m.Difficulty, m.DurationMinutes, rate*100)
	return nil
}

func printLedger(ctx context.Context, engine *services.Engine, villageID uint) error {
	ledger, err := engine.Resources.Balance(ctx, villageID)
	if err != nil {
		return err
	}
	fmt.Printf("\n📦 Ledger (capacity %d per resource)\n", ledger.Capacity)
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Resource", "Amount"}))
	for _, k := range ledger.Quantities.Kinds() {
		table.Append([]string{string(k), itoa(ledger.Quantities[k])})
	}
	table.Render()
	return nil
}
