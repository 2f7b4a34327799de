package services

import (
	"context"
	"testing"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(env *testEnv) *UserService {
	return NewUserService(env.users, env.filieres, env.requests, env.audit, testLogger())
}

func TestUserService_CreateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	filiere := env.seedFiliere(t, &models.Filiere{Name: "Informatique", Niveau: "BAC1"})
	svc := newUserService(env)

	student, err := svc.CreateProfile(ctx, "s1", " Sam@Example.com ", ProfileInput{
		FullName:  "Sam",
		Role:      models.RoleStudent,
		Niveau:    "BAC1",
		FiliereID: filiere.ID,
	})
	require.NoError(t, err)
	assert.True(t, student.IsApproved)
	assert.Equal(t, "sam@example.com", student.Email)
	assert.Equal(t, "Informatique", student.Filiere)
	assert.Equal(t, models.UserStatusActive, student.Status)
	assert.Equal(t, models.MentorStatusNone, student.MentorStatus)

	alum, err := svc.CreateProfile(ctx, "a1", "al@example.com", ProfileInput{FullName: "Al", Role: models.RoleAlumni, Niveau: "Lauréat"})
	require.NoError(t, err)
	assert.False(t, alum.IsApproved, "alumni wait for validation")

	_, err = svc.CreateProfile(ctx, "s1", "sam@example.com", ProfileInput{Role: models.RoleStudent})
	assert.ErrorIs(t, err, models.ErrConflict)

	for _, role := range []models.Role{models.RoleAdmin, models.RoleDelegate, "professor"} {
		_, err = svc.CreateProfile(ctx, "x-"+string(role), "x@example.com", ProfileInput{Role: role})
		assert.ErrorIs(t, err, models.ErrBadRequest, "role %s", role)
	}

	_, err = svc.CreateProfile(ctx, "s2", "s2@example.com", ProfileInput{Role: models.RoleStudent, FiliereID: "missing"})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_SuspendAndUnsuspend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, &models.User{UID: "u1", Role: models.RoleStudent, IsApproved: true})
	svc := newUserService(env)

	got, err := svc.Suspend(ctx, adminViewer, "u1", "spam")
	require.NoError(t, err)
	assert.True(t, got.IsSuspended)
	assert.Equal(t, models.UserStatusSuspended, got.Status)
	assert.Equal(t, "spam", got.SuspensionReason)
	assert.Equal(t, adminViewer.UID, got.SuspendedBy)

	got, err = svc.Unsuspend(ctx, adminViewer, "u1")
	require.NoError(t, err)
	assert.False(t, got.IsSuspended)
	assert.Equal(t, models.UserStatusActive, got.Status)
	assert.Empty(t, got.SuspensionReason)

	_, err = svc.Suspend(ctx, adminViewer, adminViewer.UID, "")
	assert.ErrorIs(t, err, models.ErrBadRequest)
	_, err = svc.Suspend(ctx, studentViewer, "u1", "")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = svc.Unsuspend(ctx, adminViewer, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ElementsMatch(t, []string{models.ActionSuspendUser, models.ActionUnsuspendUser}, env.actions(t))
}

func TestUserService_PromoteToDelegate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	filiere := env.seedFiliere(t, &models.Filiere{Name: "Informatique", Niveau: "BAC1"})
	env.seedUser(t, &models.User{UID: "u1", Role: models.RoleStudent, IsApproved: true})
	env.seedUser(t, &models.User{UID: "a1", Role: models.RoleAlumni, IsApproved: true})
	svc := newUserService(env)

	got, err := svc.PromoteToDelegate(ctx, adminViewer, "u1", filiere.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDelegate, got.Role)
	assert.Equal(t, filiere.ID, got.FiliereID)

	stored, err := env.filieres.GetByID(ctx, filiere.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.DelegateID)
	assert.Equal(t, []string{models.ActionPromoteToDelegate}, env.actions(t))

	_, err = svc.PromoteToDelegate(ctx, adminViewer, "a1", filiere.ID)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	_, err = svc.PromoteToDelegate(ctx, adminViewer, "u1", "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.PromoteToDelegate(ctx, studentViewer, "u1", filiere.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestUserService_MentorFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alum := env.seedUser(t, &models.User{UID: "a1", FullName: "Al", Role: models.RoleAlumni, IsApproved: true})
	env.seedUser(t, &models.User{UID: "a2", Role: models.RoleAlumni})
	svc := newUserService(env)
	alumViewer := models.ViewerFromUser(alum)

	req, err := svc.RequestMentorRole(ctx, alumViewer, "I want to help")
	require.NoError(t, err)
	assert.Equal(t, models.RequestTypeMentor, req.Type)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	profile, err := svc.GetProfile(ctx, alum.UID)
	require.NoError(t, err)
	assert.Equal(t, models.MentorStatusPending, profile.MentorStatus)

	_, err = svc.RequestMentorRole(ctx, alumViewer, "again")
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)

	_, err = svc.RequestMentorRole(ctx, models.Viewer{UID: "a2", Role: models.RoleAlumni}, "")
	assert.ErrorIs(t, err, models.ErrForbidden, "unapproved alumni cannot apply")
	_, err = svc.RequestMentorRole(ctx, studentViewer, "")
	assert.Error(t, err)

	_, err = svc.ApproveMentor(ctx, alumViewer, req.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	approved, err := svc.ApproveMentor(ctx, adminViewer, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MentorStatusApproved, approved.MentorStatus)

	_, err = svc.ApproveMentor(ctx, adminViewer, req.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, []string{models.ActionApproveMentorRequest}, env.actions(t))
}

func TestUserService_ApproveMentor_RejectsMembershipRequests(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, &models.Request{UserID: "u1"})

	_, err := newUserService(env).ApproveMentor(context.Background(), adminViewer, req.ID)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_ListUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, &models.User{UID: "s1", Role: models.RoleStudent, FiliereID: "f1"})
	env.seedUser(t, &models.User{UID: "s2", Role: models.RoleStudent, FiliereID: "f2"})
	env.seedUser(t, &models.User{UID: "a1", Role: models.RoleAlumni})
	svc := newUserService(env)

	all, err := svc.ListUsers(ctx, adminViewer, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	students, err := svc.ListUsers(ctx, adminViewer, models.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	members, err := svc.ListUsers(ctx, models.Viewer{UID: "d1", Role: models.RoleDelegate, FiliereID: "f1"}, "")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "s1", members[0].UID)

	_, err = svc.ListUsers(ctx, studentViewer, "")
	assert.ErrorIs(t, err, models.ErrForbidden)
}
