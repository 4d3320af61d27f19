package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face recognition attendance verification service",
	Long: `Facegate is the biometric decision service behind attendance clock-ins.
It runs camera frames through a quality gate, face detection and embedding
models, then matches the embedding against the enrolled gallery with
risk-aware thresholds.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// newLogger builds the process logger. FACEGATE_DEBUG switches to the
// human-readable development encoder.
func newLogger() *zap.Logger {
	var log *zap.Logger
	var err error
	if os.Getenv("FACEGATE_DEBUG") != "" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return log
}
