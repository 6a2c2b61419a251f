// Package stats implements the one-shot reporting command.
package stats

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DanceAddiction/DogShitAEye/internal/analytics"
	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
)

// Command creates a new command for printing tracking statistics.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print walker tracking statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	a := analytics.New(ds, settings)

	summary, err := a.Summary()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Walkers:\t%d\n", summary.TotalWalkers)
	fmt.Fprintf(w, "Detections:\t%d\n", summary.TotalDetections)
	fmt.Fprintf(w, "Walk sessions:\t%d\n", summary.TotalSessions)
	fmt.Fprintf(w, "Open sessions:\t%d\n", summary.OpenSessions)
	fmt.Fprintf(w, "Walks with dogs:\t%d\n", summary.DogWalks)
	if err := w.Flush(); err != nil {
		return err
	}

	regulars, err := a.RegularWalkers()
	if err != nil {
		return err
	}
	if len(regulars) > 0 {
		fmt.Printf("\nRegular walkers (last %d days):\n", settings.Analytics.RegularWalkerDays)
		for _, r := range regulars {
			dog := ""
			if r.HasDog {
				dog = " (with dog)"
			}
			fmt.Printf("  walker %d: %d walks%s, last seen %s\n",
				r.WalkerID, r.Walks, dog, r.LastSeen.Format("2006-01-02 15:04"))
		}
	}

	suspicious, err := a.SuspiciousWalkers()
	if err != nil {
		return err
	}
	if len(suspicious) > 0 {
		fmt.Println("\nFrequent walkers never seen with a dog:")
		for _, s := range suspicious {
			fmt.Printf("  walker %d: %d walks, %d detections\n",
				s.WalkerID, s.Walks, s.Detections)
		}
	}

	coverage, err := a.Coverage()
	if err != nil {
		return err
	}
	if len(coverage) > 0 {
		fmt.Println("\nDetections per camera:")
		for camera, count := range coverage {
			fmt.Printf("  %s: %d\n", camera, count)
		}
	}

	return nil
}
