package command

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"backend-loket/internal/config"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpIgnoresBrokenEnv(t *testing.T) {
	t.Setenv("QUEUE_TIMEZONE", "Mars/Olympus")
	t.Setenv("QUEUE_OPEN_TIME", "8am")

	for _, args := range [][]string{{"--help"}, {"migrate", "--help"}, {"serve", "--help"}} {
		root := NewRoot(context.Background())
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)

		require.NoError(t, root.Execute(), args)
		assert.Contains(t, out.String(), "Usage:", args)
	}
}

func TestRootPreRunOnlyParses(t *testing.T) {
	t.Setenv("QUEUE_TIMEZONE", "Mars/Olympus")
	root := NewRoot(context.Background())
	assert.NoError(t, root.PersistentPreRunE(root, nil))
}

func TestBuildStackValidatesConfig(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		Store:       "memory",
		Timezone:    "Mars/Olympus",
		OpenTime:    "08:00:00",
		CloseTime:   "16:00:00",
		ArchivePath: filepath.Join(t.TempDir(), "archive.db"),
	}
	_, err := buildStack(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_TIMEZONE")
}
