package command

import (
	"context"
	"path/filepath"
	"testing"

	"backend-loket/internal/config"
	"backend-loket/internal/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminOnly(t *testing.T) {
	users, err := newAdminOnly("admin@loket.id", "rahasia123")
	require.NoError(t, err)

	u, err := users.FindByEmail(context.Background(), "admin@loket.id")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperUser, u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("rahasia123")))

	_, err = users.FindByEmail(context.Background(), "lain@loket.id")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	empty, err := newAdminOnly("", "")
	require.NoError(t, err)
	_, err = empty.FindByEmail(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestBuildMemoryStack(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		Store:       "memory",
		Timezone:    "UTC",
		OpenTime:    "08:00:00",
		CloseTime:   "16:00:00",
		ArchivePath: filepath.Join(t.TempDir(), "archive.db"),
	}

	st, err := buildStack(cfg, logger)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	entry, err := st.svc.CreateEntry(ctx, "cust-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.TokenNumber)

	report, err := st.svc.ResetDay(ctx, entry.BusinessDate)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CancelledForced)

	snaps, err := st.archive.Snapshots(ctx, entry.BusinessDate)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0].Entries, 1)
}

func TestMigrateNeedsMySQL(t *testing.T) {
	_, err := openMigrationDB(&config.Config{Store: "memory"})
	assert.Error(t, err)
}
