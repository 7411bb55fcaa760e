package command

import (
	"context"
	"time"

	"backend-loket/internal/config"
	"backend-loket/internal/http/handler"
	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type Server struct {
	Logger *log.Logger
}

func (cmd Server) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	var noScheduler bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "run queue API server",
		Run: func(_ *cobra.Command, _ []string) {
			cmd.main(ctx, cfg, !noScheduler)
		},
	}
	c.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the daily reset at closing time")
	return c
}

func (cmd Server) main(ctx context.Context, cfg *config.Config, withScheduler bool) {
	if cfg.JWTSecret == "" {
		cmd.Logger.Fatal("JWT_SECRET wajib diisi")
		return
	}

	st, err := buildStack(cfg, cmd.Logger)
	if err != nil {
		cmd.Logger.WithContext(ctx).Fatal(errors.Wrap(err, "server : failed to build"))
		return
	}
	defer st.Close()

	if withScheduler {
		scheduler, err := queue.NewScheduler(st.svc, cfg.OpenClock(), cfg.CloseClock())
		if err != nil {
			cmd.Logger.WithContext(ctx).Fatal(err)
			return
		}
		go scheduler.Run(ctx)
	}

	app := handler.NewApp(handler.Server{
		Service: st.svc,
		Hub:     st.hub,
		Users:   st.users,
		Tokens:  config.NewTokenIssuer(cfg.JWTSecret),
		Hours: models.ServiceHours{
			JamBuka:  cfg.OpenTime,
			JamTutup: cfg.CloseTime,
			Timezone: cfg.Timezone,
		},
		Logger:    cmd.Logger,
		KioskUser: cfg.BasicAuthUser,
		KioskPass: cfg.BasicAuthPass,
	})

	errCh := make(chan error, 1)
	go func() {
		cmd.Logger.WithField("addr", cfg.Addr()).Info("Server jalan")
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			cmd.Logger.WithError(err).Error("server stopped")
		}
	case <-ctx.Done():
		cmd.Logger.Info("shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			cmd.Logger.WithError(err).Error("server shutdown")
		}
	}
}
