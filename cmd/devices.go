package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attendly/facegate/internal/config"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List device quality profiles",
	Long: `List every tracked device with its quality tier and rolling averages.

Low-tier devices get a lenient blur floor at the quality gate; the tier
never relaxes the similarity threshold.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close()

	profiles, err := stores.devices.List(ctx)
	if err != nil {
		return fmt.Errorf("listing device profiles: %w", err)
	}
	if len(profiles) == 0 {
		fmt.Println("No devices tracked yet")
		return nil
	}

	fmt.Printf("%-40s %-8s %10s %12s %12s %s\n",
		"FINGERPRINT", "TIER", "CLOCK-INS", "AVG WIDTH", "AVG BLUR", "LAST SEEN")
	for _, profile := range profiles {
		a := profile.Averages()
		fmt.Printf("%-40s %-8s %10d %12.0f %12.1f %s\n",
			profile.Fingerprint,
			profile.TrustedTier(),
			profile.TotalClockIns,
			a.ImageWidth,
			a.BlurVariance,
			profile.LastSeen.Format("2006-01-02 15:04"))
	}
	return nil
}
