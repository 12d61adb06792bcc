package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List, validate and convert the building and research catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print building kinds and research nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			printBuildings(c)
			printResearch(c)
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file for unknown references and prerequisite cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			successColor.Printf("✓ %s: %d buildings, %d research nodes\n", args[0], len(c.Buildings()), len(c.ResearchNodes()))
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Write the catalog as a workbook for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if err := c.WriteWorkbook(f); err != nil {
				return err
			}
			successColor.Printf("✓ Exported to %s\n", args[0])
			return nil
		},
	}

	var out string
	imp := &cobra.Command{
		Use:   "import <in.xlsx>",
		Short: "Convert an edited workbook back to catalog YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			data, err := c.Marshal()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			successColor.Printf("✓ Wrote %s\n", out)
			return nil
		},
	}
	imp.Flags().StringVarP(&out, "out", "o", "", "output YAML file (stdout when empty)")

	cmd.AddCommand(list, validate, export, imp)
	return cmd
}

func printBuildings(c *catalog.Catalog) {
	banner("Buildings")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Key", "Category", "Cost", "Produces/h", "Storage", "Max", "Level", "Requires"}),
	)
	for _, b := range c.Buildings() {
		produces, storage := "-", "-"
		if p := b.Production; p != nil {
			if p.Resource != "" {
				produces = fmt.Sprintf("%d %s", p.AmountPerHour, p.Resource)
			}
			if p.StorageCapacity > 0 {
				storage = itoa(p.StorageCapacity)
			}
		}
		requires := append(append([]string(nil), b.Requires.Buildings...), b.Requires.Research...)
		table.Append([]string{
			b.Key,
			b.Category,
			formatResources(b.Cost),
			produces,
			storage,
			itoa(b.MaxInstances),
			itoa(b.UnlockLevel),
			strings.Join(requires, ", "),
		})
	}
	table.Render()
}

func printResearch(c *catalog.Catalog) {
	banner("Research")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Key", "Category", "Cost", "Hours", "Prerequisites", "Unlocks"}),
	)
	for _, n := range c.ResearchNodes() {
		unlocks := append(append([]string(nil), n.Effects.UnlocksBuildings...), n.Effects.UnlocksEquipment...)
		table.Append([]string{
			n.Key,
			n.Category,
			formatResources(n.Cost),
			fmt.Sprintf("%g", n.DurationHours),
			strings.Join(n.Prerequisites, ", "),
			strings.Join(unlocks, ", "),
		})
	}
	table.Render()
}

func formatResources(m models.ResourceMap) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, k := range m.Kinds() {
		parts = append(parts, fmt.Sprintf("%s:%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
