package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskhub/backend/internal/auth"
	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/repository"
)

// AuthServiceTestSuite defines the test suite for AuthService
type AuthServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *AuthService
	user    *models.User
}

// SetupTest runs before each test
func (suite *AuthServiceTestSuite) SetupTest() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(&models.User{})
	suite.Require().NoError(err)

	jwtService := auth.NewJWTService("test-secret", time.Hour, "taskhub-test")
	suite.service = NewAuthService(repository.NewUserRepository(suite.db), jwtService)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	suite.Require().NoError(err)
	suite.user = &models.User{
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleTeamMember,
		Active:       true,
	}
	suite.db.Create(suite.user)
}

// TearDownTest runs after each test
func (suite *AuthServiceTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// TestLogin_Success returns the user and a token that authenticates
func (suite *AuthServiceTestSuite) TestLogin_Success() {
	user, token, err := suite.service.Login(LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	suite.Require().NoError(err)
	assert.Equal(suite.T(), suite.user.ID, user.ID)
	suite.Require().NotEmpty(token)

	resolved, err := suite.service.Authenticate(token)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), suite.user.ID, resolved.ID)
}

// TestLogin_WrongPassword rejects bad credentials without leaking which part failed
func (suite *AuthServiceTestSuite) TestLogin_WrongPassword() {
	_, _, err := suite.service.Login(LoginInput{
		Email:    "test@example.com",
		Password: "nope",
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidCredentials)

	_, _, err = suite.service.Login(LoginInput{
		Email:    "missing@example.com",
		Password: "password123",
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidCredentials)
}

// TestLogin_DeactivatedUser treats a soft-deleted account like a missing one
func (suite *AuthServiceTestSuite) TestLogin_DeactivatedUser() {
	suite.db.Model(suite.user).Update("active", false)

	_, _, err := suite.service.Login(LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidCredentials)
}

// TestAuthenticate_InvalidToken rejects garbage tokens
func (suite *AuthServiceTestSuite) TestAuthenticate_InvalidToken() {
	_, err := suite.service.Authenticate("not.a.token")
	assert.ErrorIs(suite.T(), err, auth.ErrInvalidToken)
}

// TestAuthenticate_StaleAfterPasswordChange rejects tokens issued before the
// user's last password change.
func (suite *AuthServiceTestSuite) TestAuthenticate_StaleAfterPasswordChange() {
	_, token, err := suite.service.Login(LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})
	suite.Require().NoError(err)

	// JWT issued-at has second precision, so move the change well past it.
	changedAt := time.Now().Add(time.Minute)
	suite.db.Model(suite.user).Update("password_changed_at", changedAt)

	_, err = suite.service.Authenticate(token)
	assert.ErrorIs(suite.T(), err, ErrStaleToken)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
