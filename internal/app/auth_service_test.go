package app

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"foerderscout/internal/model"
	"foerderscout/internal/pkg/jwtutil"
)

const testSecret = "test-secret"

func newAuthFixture(t *testing.T) (*AuthService, *memDB) {
	t.Helper()
	db := newMemDB()
	svc := NewAuthService(fakeUsers{db}, fakeApps{db}, testSecret, time.Hour, zaptest.NewLogger(t))
	return svc, db
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, db := newAuthFixture(t)

	res, err := svc.Register(RegisterInput{
		Email:       " Owner@Example.DE ",
		Password:    "geheim123",
		CompanyName: "Muster GmbH",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.de", res.User.Email)
	assert.Equal(t, model.TierBasic, res.User.SubscriptionTier)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := jwtutil.ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = svc.Register(RegisterInput{Email: "owner@example.de", Password: "geheim123", CompanyName: "Muster GmbH"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Login(LoginInput{Email: "owner@example.de", Password: "falsch123"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	logged, err := svc.Login(LoginInput{Email: "OWNER@example.de", Password: "geheim123"})
	require.NoError(t, err)
	assert.NotNil(t, db.users[logged.User.ID].LastLogin)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthFixture(t)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"email without at sign", RegisterInput{Email: "no-at-sign", Password: "geheim123", CompanyName: "Muster"}},
		{"short password", RegisterInput{Email: "a@b.de", Password: "kurz", CompanyName: "Muster"}},
		{"short company", RegisterInput{Email: "a@b.de", Password: "geheim123", CompanyName: "M"}},
		{"password over 72 bytes", RegisterInput{Email: "a@b.de", Password: strings.Repeat("a", 73), CompanyName: "Muster"}},
		{"umlaut password over 72 bytes", RegisterInput{Email: "a@b.de", Password: strings.Repeat("ä", 40), CompanyName: "Muster"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := svc.Register(RegisterInput{Email: "a@b.de", Password: strings.Repeat("a", 72), CompanyName: "Muster"})
	assert.NoError(t, err)
}

func TestAuthService_LoginInactive(t *testing.T) {
	svc, db := newAuthFixture(t)
	res, err := svc.Register(RegisterInput{Email: "a@b.de", Password: "geheim123", CompanyName: "Muster"})
	require.NoError(t, err)

	u := db.users[res.User.ID]
	u.IsActive = false
	db.users[u.ID] = u

	_, err = svc.Login(LoginInput{Email: "a@b.de", Password: "geheim123"})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthService_ProfileAndPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)
	res, err := svc.Register(RegisterInput{Email: "a@b.de", Password: "geheim123", CompanyName: "Muster"})
	require.NoError(t, err)

	location := "München"
	size := 42
	user, err := svc.UpdateProfile(res.User.ID, ProfileUpdate{Location: &location, CompanySize: &size})
	require.NoError(t, err)
	assert.Equal(t, "München", user.Location)
	assert.Equal(t, 42, *user.CompanySize)

	_, err = svc.UpdateProfile(uuid.New(), ProfileUpdate{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = svc.ChangePassword(ChangePasswordInput{UserID: res.User.ID, CurrentPassword: "falsch123", NewPassword: "neuesPasswort"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = svc.ChangePassword(ChangePasswordInput{UserID: res.User.ID, CurrentPassword: "geheim123", NewPassword: strings.Repeat("x", 73)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.ChangePassword(ChangePasswordInput{UserID: res.User.ID, CurrentPassword: "geheim123", NewPassword: "neuesPasswort"}))
	_, err = svc.Login(LoginInput{Email: "a@b.de", Password: "neuesPasswort"})
	assert.NoError(t, err)
}

func TestAuthService_ActiveUserAndRefresh(t *testing.T) {
	svc, db := newAuthFixture(t)
	res, err := svc.Register(RegisterInput{Email: "a@b.de", Password: "geheim123", CompanyName: "Muster"})
	require.NoError(t, err)

	user, err := svc.ActiveUser(res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.de", user.Email)

	refreshed, err := svc.Refresh(res.User.ID)
	require.NoError(t, err)
	claims, err := jwtutil.ParseToken(testSecret, refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, int64(3600), refreshed.ExpiresIn)

	_, err = svc.ActiveUser(uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.ActiveUser(uuid.Nil)
	assert.ErrorIs(t, err, ErrUserNotFound)

	u := db.users[res.User.ID]
	u.IsActive = false
	db.users[u.ID] = u
	_, err = svc.ActiveUser(res.User.ID)
	assert.ErrorIs(t, err, ErrUserInactive)
	_, err = svc.Refresh(res.User.ID)
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthService_Stats(t *testing.T) {
	svc, db := newAuthFixture(t)
	userID := uuid.New()
	funding := 80000.0
	for _, status := range []model.ApplicationStatus{model.StatusApproved, model.StatusRejected, model.StatusDraft, model.StatusRejected} {
		a := model.Application{ID: uuid.New(), UserID: userID, Status: status}
		if status == model.StatusApproved {
			a.ApprovedFunding = &funding
		}
		db.apps[a.ID] = a
	}

	stats, err := svc.Stats(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalApplications)
	assert.Equal(t, int64(1), stats.ApprovedApplications)
	assert.InDelta(t, 80000, stats.TotalFundingSecured, 0.001)
	assert.InDelta(t, 1.0/3.0, stats.SuccessRate, 1e-9)
}
