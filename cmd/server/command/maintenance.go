package command

import (
	"context"
	"encoding/json"
	"os"

	"backend-loket/internal/config"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ResetCommand - tutup hari secara manual, misalnya kalau scheduler terlewat
type ResetCommand struct {
	Logger *log.Logger
}

func (cmd ResetCommand) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	var date string
	c := &cobra.Command{
		Use:   "reset-day",
		Short: "force-close every open queue entry",
		Run: func(_ *cobra.Command, _ []string) {
			cmd.main(ctx, cfg, date)
		},
	}
	c.Flags().StringVar(&date, "date", "", "effective business date YYYY-MM-DD (default today)")
	return c
}

func (cmd ResetCommand) main(ctx context.Context, cfg *config.Config, date string) {
	st, err := buildStack(cfg, cmd.Logger)
	if err != nil {
		cmd.Logger.WithContext(ctx).Fatal(errors.Wrap(err, "reset-day : failed to build"))
		return
	}
	defer st.Close()

	if date == "" {
		date = st.svc.Today()
	}
	report, err := st.svc.ResetDay(ctx, date)
	if err != nil && report.EffectiveDate == "" {
		cmd.Logger.WithContext(ctx).Fatal(err)
		return
	}
	if err != nil {
		cmd.Logger.WithError(err).Error("reset committed with follow-up failure")
	}
	writeJSON(cmd.Logger, report)
}

// BackfillCommand - isi served_at untuk data lama
type BackfillCommand struct {
	Logger *log.Logger
}

func (cmd BackfillCommand) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-served-at",
		Short: "fill served_at on completed rows written before it existed",
		Run: func(_ *cobra.Command, _ []string) {
			st, err := buildStack(cfg, cmd.Logger)
			if err != nil {
				cmd.Logger.WithContext(ctx).Fatal(errors.Wrap(err, "backfill : failed to build"))
				return
			}
			defer st.Close()

			n, err := st.svc.BackfillServedAt(ctx)
			if err != nil {
				cmd.Logger.WithContext(ctx).Fatal(err)
				return
			}
			writeJSON(cmd.Logger, map[string]int{"updated": n})
		},
	}
}

// SnapshotsCommand - baca arsip reset harian
type SnapshotsCommand struct {
	Logger *log.Logger
}

func (cmd SnapshotsCommand) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots YYYY-MM-DD",
		Short: "print archived reset snapshots of a business date",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			st, err := buildStack(cfg, cmd.Logger)
			if err != nil {
				cmd.Logger.WithContext(ctx).Fatal(errors.Wrap(err, "snapshots : failed to build"))
				return
			}
			defer st.Close()

			snaps, err := st.archive.Snapshots(ctx, args[0])
			if err != nil {
				cmd.Logger.WithContext(ctx).Fatal(err)
				return
			}
			writeJSON(cmd.Logger, snaps)
		},
	}
}

func writeJSON(logger *log.Logger, v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.WithError(err).Error("write output")
	}
}
