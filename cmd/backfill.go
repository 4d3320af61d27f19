package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/config"
	"github.com/attendly/facegate/internal/pipeline"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Recompute identity templates from stored samples",
	Long: `Recompute every identity's centroid and mean quality from its stored
embedding samples.

Samples persisted without quality records weigh in through a norm-derived
estimate, so identities enrolled before quality tracking existed get a
meaningful template too.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger()
	defer log.Sync()

	ctx := context.Background()
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close()

	// Backfill only reads stored embeddings; no models are needed.
	p := pipeline.New(pipeline.Deps{
		Identities: stores.identities,
		Devices:    stores.devices,
		History:    stores.history,
		Log:        log,
	})

	updated, err := p.BackfillTemplates(ctx)
	if err != nil {
		return fmt.Errorf("backfilling templates: %w", err)
	}

	log.Info("backfill complete", zap.Int("updated", updated))
	fmt.Printf("Recomputed templates for %d identities\n", updated)
	return nil
}
