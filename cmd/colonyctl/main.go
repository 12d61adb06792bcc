package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/spf13/cobra"
)

var (
	catalogPath string

	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "colonyctl",
		Short: "Operator tool for the colony engine",
		Long: `Inspects and authors the static catalog, runs in-memory dry runs of the
economy and reads village state from the database.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (.yaml or .xlsx); embedded catalog when empty")

	rootCmd.AddCommand(newCatalogCmd(), newSimulateCmd(), newVillageCmd())

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}

// loadCatalog reads a YAML or workbook catalog, or the embedded one.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return catalog.ReadWorkbook(f)
	}
	return catalog.Load(path)
}

func banner(title string) {
	titleColor.Printf("\n── %s ──\n", title)
}

func itoa[T ~int | ~int64 | ~uint](v T) string {
	return fmt.Sprintf("%d", v)
}
