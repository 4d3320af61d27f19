package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/attendly/facegate/internal/config"
	"github.com/attendly/facegate/internal/pipeline"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Batch-enroll identities from a photo directory",
	Long: `Enroll identities from a directory of photos.

Each subdirectory becomes one identity named after the subdirectory; every
image inside it (jpg, jpeg, png) is used as an enrollment frame. All frames
of an identity must pass the strict quality gates or that identity is
skipped and reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger()
	defer log.Sync()

	root := args[0]
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	var people []string
	for _, entry := range entries {
		if entry.IsDir() {
			people = append(people, entry.Name())
		}
	}
	if len(people) == 0 {
		return fmt.Errorf("no identity subdirectories found in %s", root)
	}

	ctx := context.Background()
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close()

	dispatcher := newDispatcher(cfg, stores, log)
	defer dispatcher.Close()

	p, loader, err := buildPipeline(ctx, cfg, stores, dispatcher, log)
	if err != nil {
		return err
	}
	defer loader.Close()

	fmt.Printf("Enrolling %d identities from %s\n\n", len(people), root)
	bar := progressbar.NewOptions(len(people),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var failures []string
	enrolled := 0
	for _, name := range people {
		frames, err := readFrames(filepath.Join(root, name))
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			bar.Add(1)
			continue
		}

		identity, err := p.Enroll(ctx, pipeline.EnrollRequest{Name: name, Images: frames})
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			bar.Add(1)
			continue
		}
		enrolled++
		log.Sugar().Debugf("enrolled %s as %s", identity.Name, identity.ID)
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("\nEnrolled %d of %d identities\n", enrolled, len(people))
	if len(failures) > 0 {
		fmt.Printf("\n%d failed:\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
	}
	return nil
}

// readFrames loads every supported image in the directory.
func readFrames(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames [][]byte
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	return frames, nil
}
