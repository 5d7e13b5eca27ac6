package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/store"
	"github.com/spigell/scholarship-hunter/internal/utils"
)

const listNotesWidth = 60

type listOptions struct {
	MinScore int
	Status   string
	Sort     string
	Format   string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print saved scholarships",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := listOptions{}
		opts.MinScore, _ = cmd.Flags().GetInt("min-score")
		opts.Status, _ = cmd.Flags().GetString("status")
		opts.Sort, _ = cmd.Flags().GetString("sort")
		opts.Format, _ = cmd.Flags().GetString("format")
		return list(cmd.Context(), opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Int("min-score", 0, "show only rows with at least this match score")
	listCmd.Flags().String("status", "", "show only rows with this status (New, Reviewed, Applied, Expired)")
	listCmd.Flags().String("sort", "found", "sort by score, deadline or found")
	listCmd.Flags().String("format", "table", "output format: table or yaml")
}

func list(ctx context.Context, opts listOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	logger, err := newLogger(config)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	st, closeStore, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the table store", zap.Error(err))
	}
	defer closeStore()

	records, err := st.ReadAll(ctx)
	if err != nil {
		logger.Fatal("reading records", zap.Error(err))
	}

	records, err = selectRecords(records, opts)
	if err != nil {
		return err
	}

	return printRecords(out, records, opts.Format)
}

func selectRecords(records []store.Record, opts listOptions) ([]store.Record, error) {
	selected := make([]store.Record, 0, len(records))
	for _, rec := range records {
		if rec.MatchScore < opts.MinScore {
			continue
		}
		if opts.Status != "" && !strings.EqualFold(string(rec.Status), opts.Status) {
			continue
		}
		selected = append(selected, rec)
	}

	switch strings.ToLower(opts.Sort) {
	case "", "found":
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].DateFound > selected[j].DateFound
		})
	case "score":
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].MatchScore > selected[j].MatchScore
		})
	case "deadline":
		sort.SliceStable(selected, func(i, j int) bool {
			return deadlineBefore(selected[i].Deadline, selected[j].Deadline)
		})
	default:
		return nil, fmt.Errorf("unsupported sort key: %s", opts.Sort)
	}

	return selected, nil
}

// deadlineBefore orders known deadlines ascending and unknown ones last.
func deadlineBefore(a, b string) bool {
	ta, okA := ingest.ParseDeadline(a)
	tb, okB := ingest.ParseDeadline(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA:
		return true
	default:
		return false
	}
}

func printRecords(out io.Writer, records []store.Record, format string) error {
	switch strings.ToLower(format) {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case "", "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(store.Headers, "\t"))
		for _, rec := range records {
			fmt.Fprintln(w, strings.Join([]string{
				rec.DateFound,
				rec.ProgramName,
				rec.Deadline,
				rec.URL,
				strconv.Itoa(rec.MatchScore),
				utils.TruncateForLog(utils.CollapseSpaces(rec.Notes), listNotesWidth),
				string(rec.Status),
			}, "\t"))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
