package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/fixture"
	"github.com/jekabolt/delivery-analytics/internal/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const seedBatch = 1000

var (
	seedFile string

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML fixture of channels and orders into the database",
		RunE:  seed,
	}
)

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "fixture file to load")
	_ = seedCmd.MarkFlagRequired("file")
}

func seed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}
	src, err := fixture.Load(seedFile, loc)
	if err != nil {
		return err
	}

	dbCfg := cfg.DB
	dbCfg.Location = loc
	repo, err := store.New(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	facts := src.Facts()
	bar := progressbar.Default(int64(len(facts)), "seeding orders")
	err = repo.Tx(ctx, func(ctx context.Context, rep dependency.Repository) error {
		bar.Reset()
		if err := rep.Orders().AddChannels(ctx, src.Channels()); err != nil {
			return fmt.Errorf("can't add channels: %w", err)
		}
		for batch := range slices.Chunk(facts, seedBatch) {
			if err := rep.Orders().AddOrderFacts(ctx, batch); err != nil {
				return fmt.Errorf("can't add orders: %w", err)
			}
			_ = bar.Add(len(batch))
		}
		return nil
	})
	if err != nil {
		return err
	}
	_ = bar.Finish()
	fmt.Fprintf(cmd.OutOrStdout(), "\nseeded %d channels and %d orders\n", len(src.Channels()), len(facts))
	return nil
}
