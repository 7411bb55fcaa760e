package command

import (
	"context"

	"backend-loket/internal/config"
	"backend-loket/internal/storage/mysqlstore"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type MigrateCommand struct {
	Logger *log.Logger
}

func (cmd MigrateCommand) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "run mysql migration",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		Run: func(_ *cobra.Command, args []string) {
			cmd.main(ctx, cfg, args[0])
		},
	}
}

func (cmd MigrateCommand) main(ctx context.Context, cfg *config.Config, direction string) {
	db, err := openMigrationDB(cfg)
	if err != nil {
		cmd.Logger.WithContext(ctx).Fatal(errors.Wrap(err, "migrate : failed to connect to mysql"))
		return
	}
	defer db.Close()

	switch direction {
	case "up":
		err = mysqlstore.MigrateUp(db, cfg.DB.Name, cmd.Logger)
	case "down":
		err = mysqlstore.MigrateDown(db, cfg.DB.Name, cmd.Logger)
	default:
		err = errors.Errorf("migration command : %s is not supported", direction)
	}
	if err != nil {
		cmd.Logger.WithContext(ctx).Fatal(err)
	}
}
