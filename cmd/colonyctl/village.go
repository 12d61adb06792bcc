package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/colony_engine/internal/config"
	"github.com/mroshb/colony_engine/internal/database"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/internal/services"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newVillageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "village",
		Short: "Read village state from the database",
	}

	var eventLimit int
	inspect := &cobra.Command{
		Use:   "inspect <village-id>",
		Short: "Print the ledger, buildings, research, roster and missions of a village",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid village id %q", args[0])
			}
			engine, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()
			return inspectVillage(cmd.Context(), engine, uint(id), eventLimit)
		},
	}
	inspect.Flags().IntVar(&eventLimit, "events", 10, "number of recent events to show")

	cmd.AddCommand(inspect)
	return cmd
}

func openEngine() (*services.Engine, func(), error) {
	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine := services.NewEngine(services.Deps{
		Store:   repositories.NewGormStore(db),
		Catalog: cat,
		Settings: services.Settings{
			DestroyRefundPercent: cfg.DestroyRefundPercent,
			ApplyMoralePenalty:   cfg.ApplyMoralePenalty,
		},
	})
	return engine, func() { database.Close(db) }, nil
}

func inspectVillage(ctx context.Context, engine *services.Engine, villageID uint, eventLimit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := engine.Villages.Get(ctx, villageID)
	if err != nil {
		return err
	}
	titleColor.Printf("\n🏘  %s (#%d)\n", v.Name, v.ID)
	fmt.Printf("   Level %d · XP %d · Score %d · Morale %d\n", v.Level, v.XP, v.Score, v.Morale)

	if err := printLedger(ctx, engine, villageID); err != nil {
		return err
	}

	buildings, err := engine.Buildings.List(ctx, villageID)
	if err != nil {
		return err
	}
	banner("Buildings")
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"ID", "Kind", "Position", "Level", "Active", "Workers"}))
	for _, b := range buildings {
		table.Append([]string{itoa(b.ID), b.KindKey, fmt.Sprintf("%d,%d", b.X, b.Y), itoa(b.Level), strconv.FormatBool(b.Active), itoa(b.Workers)})
	}
	table.Render()

	tree, err := engine.Research.Tree(ctx, villageID)
	if err != nil {
		return err
	}
	banner("Research")
	table = tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Node", "Status", "Progress", "Remaining"}))
	for _, n := range tree {
		table.Append([]string{n.Node.Key, n.Status.String(), fmt.Sprintf("%d%%", n.Progress), n.Remaining.Round(time.Second).String()})
	}
	table.Render()

	roster, err := engine.Characters.List(ctx, villageID)
	if err != nil {
		return err
	}
	banner("Characters")
	table = tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"ID", "Name", "Class", "Level", "HP", "Power", "Away"}))
	for i := range roster {
		c := &roster[i]
		name := c.Name
		if c.IsPlayer {
			name += " ★"
		}
		table.Append([]string{
			itoa(c.ID), name, c.Class.String(), itoa(c.Level),
			fmt.Sprintf("%d/%d", c.CurrentHP, c.MaxHP),
			itoa(services.PowerScore(c)),
			strconv.FormatBool(c.OnMission),
		})
	}
	table.Render()

	items, err := engine.Equipment.List(ctx, villageID)
	if err != nil {
		return err
	}
	banner("Equipment")
	table = tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"ID", "Name", "Slot", "Rarity", "Level", "Owner", "Equipped"}))
	for _, e := range items {
		table.Append([]string{itoa(e.ID), e.Name, e.Slot.String(), e.Rarity.String(), itoa(e.Level), itoa(e.CharacterID), strconv.FormatBool(e.Equipped)})
	}
	table.Render()

	missions, err := engine.Missions.List(ctx, villageID)
	if err != nil {
		return err
	}
	banner("Missions")
	table = tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"ID", "Name", "Type", "Status", "Difficulty", "Deadline"}))
	for _, m := range missions {
		deadline := "-"
		if m.Deadline != nil {
			deadline = m.Deadline.Format(time.RFC3339)
		}
		table.Append([]string{itoa(m.ID), m.Name, m.Type.String(), m.Status.String(), itoa(m.Difficulty), deadline})
	}
	table.Render()

	recent, err := engine.Villages.Events(ctx, villageID, eventLimit)
	if err != nil {
		return err
	}
	banner("Recent events")
	table = tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"When", "Entity", "ID", "Transition"}))
	for _, e := range recent {
		table.Append([]string{e.OccurredAt.Format(time.RFC3339), e.EntityType, itoa(e.EntityID), e.Transition})
	}
	table.Render()
	return nil
}
