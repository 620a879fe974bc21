/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/mimir_tv/internal/autogen"
	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/registry"
)

var autogenCmd = &cobra.Command{
	Use:   "autogen",
	Short: "Generate channels from catalog facets",
	Long: `Build one channel per genre or decade facet with enough catalog items.

Examples:
  # One channel per listed genre
  mimirtv autogen --genres horror,scifi,western

  # Decade channels starting at number 200
  mimirtv autogen --decades 1980,1990 --start-number 200

  # Require at least 10 items per facet
  mimirtv autogen --genres comedy --min-items 10
`,
	RunE: runAutogen,
}

var (
	autogenGenres      []string
	autogenDecades     []int
	autogenMinItems    int
	autogenStartNumber int
)

func init() {
	rootCmd.AddCommand(autogenCmd)

	autogenCmd.Flags().StringSliceVar(&autogenGenres, "genres", nil, "Genres to build channels for")
	autogenCmd.Flags().IntSliceVar(&autogenDecades, "decades", nil, "Decade start years to build channels for (e.g. 1980)")
	autogenCmd.Flags().IntVar(&autogenMinItems, "min-items", 0, "Skip facets with fewer catalog items (default 5)")
	autogenCmd.Flags().IntVar(&autogenStartNumber, "start-number", 0, "Lowest channel number to assign (default 100)")
}

func runAutogen(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if len(autogenGenres) == 0 && len(autogenDecades) == 0 {
		return fmt.Errorf("at least one of --genres and --decades must be set")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	reg := registry.New(database, logger)
	cat := catalog.New(database, logger)
	generator := autogen.New(reg, cat, events.NewBus(), logger)

	result, err := generator.Run(cmd.Context(), autogen.Options{
		Genres:      autogenGenres,
		Decades:     autogenDecades,
		MinItems:    autogenMinItems,
		StartNumber: autogenStartNumber,
	})
	if err != nil {
		return fmt.Errorf("autogen: %w", err)
	}

	for _, ch := range result.Created {
		fmt.Printf("created: %s (number %d, %d items)\n", ch.Name, ch.Number, ch.Items)
	}
	for _, skip := range result.Skipped {
		fmt.Printf("skipped: %s (%s)\n", skip.Facet, skip.Reason)
	}
	fmt.Printf("created %d channels, skipped %d facets\n", len(result.Created), len(result.Skipped))
	return nil
}
