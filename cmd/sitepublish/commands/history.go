package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sitepublish/internal/config"
	"git.home.luguber.info/inful/sitepublish/internal/eventstore"
	"git.home.luguber.info/inful/sitepublish/internal/folders"
	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of runs to show" default:"10"`
	JSON  bool `name:"json" help:"Print runs as JSON"`
}

func (h *HistoryCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	runs, err := loadHistory(ctx, cfg, root.Root, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	return printRuns(os.Stdout, runs)
}

// loadHistory returns up to limit recorded runs, newest first.
func loadHistory(ctx context.Context, cfg *config.Config, root string, limit int) ([]eventstore.RunSummary, error) {
	dir, err := folders.ResolveRoot(root, cfg.Path)
	if err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindFolderResolution, Path: root, Message: "could not resolve the site root", Err: err}
	}

	store, err := eventstore.NewSQLiteStore(historyPath(cfg, dir))
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewHistoryProjection(store, cfg.History.MaxRuns)
	if err := projection.Rebuild(ctx); err != nil {
		return nil, err
	}
	runs := projection.History()
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func printRuns(out io.Writer, runs []eventstore.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tKINDS\tSTATUS\tDURATION\tITEMS\tDETAIL")
	for _, r := range runs {
		detail := ""
		if r.FailedStep != "" {
			detail = fmt.Sprintf("%s: %s", r.FailedStep, r.ErrorMessage)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			strings.Join(r.Kinds, ","),
			r.Status,
			r.Duration.Round(time.Millisecond),
			r.Items,
			detail)
	}
	return tw.Flush()
}
