package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/benchwatch/internal/store"
)

var (
	historyDB    string
	historyLimit int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDB, "results_db", "", "SQLite file recording run history (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded benchmark runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyDB == "" {
			return fmt.Errorf("--results_db is required")
		}
		st, err := store.Open(historyDB)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		runs, err := st.List(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return nil
		}
		for _, r := range runs {
			browser := "-"
			if r.BrowserMS != nil {
				browser = fmt.Sprintf("%dms", *r.BrowserMS)
			}
			fmt.Printf("%-20s %-30s initial %6dms  incremental %6dms  browser %s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Target,
				r.InitialMS, r.IncrementalMS, browser)
		}
		return nil
	},
}
