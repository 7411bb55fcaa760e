package command

import (
	"context"
	"database/sql"
	"time"

	"backend-loket/internal/archive"
	"backend-loket/internal/config"
	"backend-loket/internal/http/handler"
	"backend-loket/internal/models"
	"backend-loket/internal/notify"
	"backend-loket/internal/queue"
	"backend-loket/internal/realtime"
	"backend-loket/internal/sequence"
	"backend-loket/internal/storage/mysqlstore"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// stack - semua komponen yang sudah tersambung, dipakai oleh setiap command
type stack struct {
	loc     *time.Location
	svc     *queue.Service
	hub     *realtime.Hub
	users   handler.UserFinder
	archive *archive.SQLiteArchive

	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildStack(cfg *config.Config, logger *log.Logger) (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	st := &stack{}
	ok := false
	defer func() {
		if !ok {
			st.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	st.loc = loc

	var (
		store     queue.Store
		seq       queue.Sequencer
		directory queue.Directory = queue.StaticDirectory{}
	)

	switch cfg.Store {
	case "memory":
		store = queue.NewMemoryStore()
		seq = queue.NewMemorySequencer()
		users, err := newAdminOnly(cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return nil, err
		}
		st.users = users
		logger.Warn("STORE=memory, data hilang saat restart")
	default:
		db, err := config.OpenDB(cfg.DB)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to mysql")
		}
		st.closers = append(st.closers, func() { db.Close() })
		store = mysqlstore.New(db)
		seq = mysqlstore.NewSequencer(db)
		directory = mysqlstore.NewDirectory(db)
		st.users = mysqlstore.NewUsers(db)
	}

	// redis dipakai sebagai sequencer kalau dikonfigurasi
	rdb, err := config.NewRedis(cfg.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	if rdb != nil {
		st.closers = append(st.closers, func() { rdb.Close() })
		seq = sequence.NewRedisSequencer(rdb)
		logger.WithField("addr", cfg.Redis.Addr).Info("token sequence on redis")
	}

	st.archive, err = archive.Open(cfg.ArchivePath, logger)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, func() { st.archive.Close() })

	opts := []queue.Option{
		queue.WithLocation(loc),
		queue.WithLogger(logger),
		queue.WithDirectory(directory),
		queue.WithArchive(st.archive),
		// hub dibuat setelah service, jadi diteruskan lewat closure
		queue.WithBroadcaster(queue.BroadcasterFunc(func(c queue.Change) {
			if st.hub != nil {
				st.hub.Broadcast(c)
			}
		})),
	}

	if cfg.RabbitMQURL != "" {
		mq, err := notify.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to rabbitmq")
		}
		st.closers = append(st.closers, mq.Close)
		opts = append(opts,
			queue.WithNotifier(notify.NewDispatcher(mq, logger)),
			queue.WithEventSink(notify.NewEventPublisher(mq)),
		)
	} else {
		logger.Warn("RABBITMQ_URL kosong, notifikasi dan event stream nonaktif")
	}

	st.svc = queue.NewService(store, seq, opts...)
	st.closers = append(st.closers, st.svc.Wait)
	st.hub = realtime.NewHub(st.svc, loc, logger)

	ok = true
	return st, nil
}

// openMigrationDB - koneksi khusus migrate, tanpa komponen lain
func openMigrationDB(cfg *config.Config) (*sql.DB, error) {
	if cfg.Store != "mysql" {
		return nil, errors.Errorf("migrate needs STORE=mysql, got %q", cfg.Store)
	}
	return config.OpenDB(cfg.DB)
}

// adminOnly - satu akun super_user dari env, untuk STORE=memory
type adminOnly struct {
	user *models.User
}

func newAdminOnly(email, password string) (*adminOnly, error) {
	if email == "" || password == "" {
		return &adminOnly{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash admin password")
	}
	now := time.Now()
	return &adminOnly{user: &models.User{
		ID:        1,
		Nama:      "Admin",
		Email:     email,
		Password:  string(hash),
		Role:      models.RoleSuperUser,
		IsBanned:  "n",
		CreatedAt: now,
		UpdatedAt: now,
	}}, nil
}

func (a *adminOnly) FindByEmail(_ context.Context, email string) (models.User, error) {
	if a.user == nil || a.user.Email != email {
		return models.User{}, models.ErrUserNotFound
	}
	return *a.user, nil
}
