package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/database"
	"github.com/Messijah/PedagogiskDialog/internal/repository/sqlstore"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	dbCfg := config.DatabaseConfig{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "auth.db")}
	require.NoError(t, database.RunMigrations(dbCfg))
	db, err := database.NewConnection(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewService(sqlstore.NewUserRepository(db.DB), config.AuthConfig{
		JWTSecret: "test-secret-test-secret-test-secret",
		Issuer:    "test",
	}, logger)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"kort1A", ErrPasswordTooShort},
		{"alllowercase", ErrPasswordTooWeak},
		{"Lowerupper", ErrPasswordTooWeak},
		{"Rektor2024", nil},
		{"rektor-2024", nil},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.ErrorIs(t, ValidatePassword(tt.password), tt.want)
		})
	}
}

func TestTokenTypes(t *testing.T) {
	svc := NewJWTService("secret", "test", time.Minute, time.Hour)
	user, err := NewUser("anna@skolan.se", "Rektor2024", "Anna", "")
	require.NoError(t, err)

	access, refresh, err := svc.GenerateTokenPair(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "anna@skolan.se", claims.Email)

	_, err = svc.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService("other", "test", time.Minute, time.Hour)
	_, err = other.ValidateAccessToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.ValidateAccessToken(access)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Empty(t, ExtractTokenFromBearer("Basic abc"))
	assert.Empty(t, ExtractTokenFromBearer("Bearer "))
}

func TestSignUpLoginRefresh(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "inte-en-adress", "Rektor2024", "Anna")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	user, err := svc.SignUp(ctx, "Anna@Skolan.se", "Rektor2024", "Anna")
	require.NoError(t, err)
	assert.NotEqual(t, "Rektor2024", user.PasswordHash)

	_, err = svc.SignUp(ctx, "anna@skolan.se", "Rektor2024", "Anna igen")
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	_, _, err = svc.Login(ctx, "anna@skolan.se", "fel-lösenord")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "okand@skolan.se", "Rektor2024")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, pair, err := svc.Login(ctx, "anna@skolan.se", "Rektor2024")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int(DefaultAccessTokenTTL.Seconds()), pair.ExpiresIn)

	caller, err := svc.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, caller.UserID)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, me.LastLoginAt)
}
