package services

import (
	"context"
	"testing"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService_ExportThenImportIntoEmptyStore(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	src.seedUser(t, &models.User{UID: "u1", FullName: "Sam", Role: models.RoleStudent, IsApproved: true})
	f := src.seedFiliere(t, &models.Filiere{Name: "Info", Niveau: "BAC1"})

	data, err := NewBackupService(src.backup, src.audit, testLogger()).Export(ctx, adminViewer)
	require.NoError(t, err)
	assert.Len(t, data["users"], 1)
	assert.Len(t, data["filieres"], 1)

	dst := newTestEnv(t)
	n, err := NewBackupService(dst.backup, dst.audit, testLogger()).Import(ctx, adminViewer, data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	user, err := dst.users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", user.FullName)
	_, err = dst.filieres.GetByID(ctx, f.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{models.ActionImportData}, dst.actions(t))
}

func TestBackupService_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := NewBackupService(env.backup, env.audit, testLogger())

	_, err := svc.Export(context.Background(), studentViewer)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = svc.Import(context.Background(), studentViewer, map[string][]store.Document{})
	assert.ErrorIs(t, err, models.ErrForbidden)
}
