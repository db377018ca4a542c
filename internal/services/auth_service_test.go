package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockUserRepo struct {
	repository.UserRepository
	mockFindByEmail func(ctx context.Context, email string) (*models.User, error)
	mockFindByID    func(ctx context.Context, id uint) (*models.User, error)
	mockCreate      func(ctx context.Context, user *models.User) error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.mockFindByEmail(ctx, email)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, user)
	}
	user.ID = 7
	return nil
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return nil
}

type mockRefreshTokenRepo struct {
	repository.RefreshTokenRepository
	created         []models.RefreshToken
	deleted         []string
	purgedBefore    time.Time
	mockFindByToken func(ctx context.Context, token string) (*models.RefreshToken, error)
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, rt *models.RefreshToken) error {
	m.created = append(m.created, *rt)
	return nil
}

func (m *mockRefreshTokenRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return m.mockFindByToken(ctx, token)
}

func (m *mockRefreshTokenRepo) Delete(ctx context.Context, token string) error {
	m.deleted = append(m.deleted, token)
	return nil
}

func (m *mockRefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.purgedBefore = before
	return 2, nil
}

func testAuthConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 24}
}

func TestAuthService_Register(t *testing.T) {
	userRepo := &mockUserRepo{}
	rtRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(userRepo, rtRepo, nil, nil, testAuthConfig())

	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "  Ayse@Example.com ",
		Password: "gizli-sifre",
		FullName: "Ayşe Yılmaz",
	})
	require.NoError(t, err)

	assert.Equal(t, "ayse@example.com", result.User.Email)
	assert.NotEmpty(t, result.RefreshToken)
	require.Len(t, rtRepo.created, 1)
	assert.Equal(t, uint(7), rtRepo.created[0].UserID)

	token, err := jwt.Parse(result.Token, func(t *jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(7), claims["user_id"])
}

func TestAuthService_Register_Validation(t *testing.T) {
	service := NewAuthService(&mockUserRepo{}, &mockRefreshTokenRepo{}, nil, nil, testAuthConfig())

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "gizli-sifre", FullName: "Ayşe"}},
		{"short password", RegisterInput{Email: "ayse@example.com", Password: "kisa", FullName: "Ayşe"}},
		{"blank name", RegisterInput{Email: "ayse@example.com", Password: "gizli-sifre", FullName: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	userRepo := &mockUserRepo{
		mockCreate: func(ctx context.Context, user *models.User) error { return repository.ErrDuplicateEmail },
	}
	service := NewAuthService(userRepo, &mockRefreshTokenRepo{}, nil, nil, testAuthConfig())

	_, err := service.Register(context.Background(), RegisterInput{Email: "ayse@example.com", Password: "gizli-sifre", FullName: "Ayşe"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAuthService_Login(t *testing.T) {
	hash, err := HashPassword("gizli-sifre")
	require.NoError(t, err)

	userRepo := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			if email != "ayse@example.com" {
				return nil, gorm.ErrRecordNotFound
			}
			return &models.User{ID: 1, Email: email, EncryptedPassword: hash, Status: models.StatusActive}, nil
		},
	}
	service := NewAuthService(userRepo, &mockRefreshTokenRepo{}, nil, nil, testAuthConfig())
	ctx := context.Background()

	result, err := service.Login(ctx, "ayse@example.com", "gizli-sifre")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = service.Login(ctx, "ayse@example.com", "yanlis")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(ctx, "nobody@example.com", "gizli-sifre")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	mockRepo := &mockUserRepo{}
	service := NewAuthService(mockRepo, nil, nil, nil, testAuthConfig())

	mockRepo.mockFindByEmail = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{
			Email:  email,
			Status: models.StatusSuspended,
		}, nil
	}

	result, err := service.Login(context.Background(), "inactive@example.com", "password")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInactiveAccount)
	assert.Equal(t, "hesap aktif değil", err.Error())
}

func TestAuthService_RefreshToken(t *testing.T) {
	userRepo := &mockUserRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Email: "ayse@example.com", Status: models.StatusActive}, nil
		},
	}
	expired := time.Now().Add(-time.Hour)
	rtRepo := &mockRefreshTokenRepo{
		mockFindByToken: func(ctx context.Context, token string) (*models.RefreshToken, error) {
			switch token {
			case "valid":
				return &models.RefreshToken{UserID: 1, Token: token}, nil
			case "expired":
				return &models.RefreshToken{UserID: 1, Token: token, ExpiresAt: &expired}, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	service := NewAuthService(userRepo, rtRepo, nil, nil, testAuthConfig())
	ctx := context.Background()

	result, err := service.RefreshToken(ctx, "valid")
	require.NoError(t, err)
	assert.NotEqual(t, "valid", result.RefreshToken)
	assert.Equal(t, []string{"valid"}, rtRepo.deleted, "old token is rotated out")

	_, err = service.RefreshToken(ctx, "expired")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, rtRepo.deleted, "expired")

	_, err = service.RefreshToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_RefreshToken_InactiveUser(t *testing.T) {
	mockRepo := &mockUserRepo{}
	rtRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(mockRepo, rtRepo, nil, nil, testAuthConfig())

	rtRepo.mockFindByToken = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return &models.RefreshToken{UserID: 1}, nil
	}
	mockRepo.mockFindByID = func(ctx context.Context, id uint) (*models.User, error) {
		return &models.User{
			ID:     id,
			Status: models.StatusSuspended,
		}, nil
	}

	result, err := service.RefreshToken(context.Background(), "token")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestAuthService_PurgeExpiredRefreshTokens(t *testing.T) {
	rtRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(&mockUserRepo{}, rtRepo, nil, nil, testAuthConfig())

	require.NoError(t, service.PurgeExpiredRefreshTokens(context.Background()))
	assert.WithinDuration(t, time.Now(), rtRepo.purgedBefore, time.Minute)
}
