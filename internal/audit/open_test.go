package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

func TestOpen(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	ctx := context.Background()

	store, err := Open(ctx, domain.AuditConfig{Driver: "none"}, logger)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, domain.AuditConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "runs.db")}, logger)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())

	_, err = Open(ctx, domain.AuditConfig{Driver: "mongodb"}, logger)
	assert.Error(t, err)
}
