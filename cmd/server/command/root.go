package command

import (
	"context"

	"backend-loket/internal/config"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRoot builds the loket command tree. The environment is read only when a
// subcommand actually runs, so --help works whatever the env holds.
func NewRoot(ctx context.Context) *cobra.Command {
	cfg := &config.Config{}
	logger := log.New()

	root := &cobra.Command{
		Use:           "loket",
		Short:         "Antrian loket server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			parsed, err := config.Parse()
			if err != nil {
				return errors.Wrap(err, "read config")
			}
			*cfg = *parsed
			config.ConfigureLogger(logger, cfg)
			return nil
		},
	}

	root.AddCommand(
		Server{Logger: logger}.Command(ctx, cfg),
		MigrateCommand{Logger: logger}.Command(ctx, cfg),
		ResetCommand{Logger: logger}.Command(ctx, cfg),
		BackfillCommand{Logger: logger}.Command(ctx, cfg),
		SnapshotsCommand{Logger: logger}.Command(ctx, cfg),
	)
	return root
}
