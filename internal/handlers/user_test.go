package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskhub/backend/internal/auth"
	"github.com/taskhub/backend/internal/middleware"
	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/repository"
	"github.com/taskhub/backend/internal/services"
)

// UserHandlerTestSuite defines the test suite for UserHandler
type UserHandlerTestSuite struct {
	suite.Suite
	db          *gorm.DB
	handler     *UserHandler
	authHandler *AuthHandler
}

// SetupTest runs before each test
func (suite *UserHandlerTestSuite) SetupTest() {
	var err error

	// Create in-memory SQLite database
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	// Run migrations
	err = suite.db.AutoMigrate(&models.User{})
	suite.Require().NoError(err)

	userRepo := repository.NewUserRepository(suite.db)
	jwtService := auth.NewJWTService("test-secret", time.Hour, "taskhub-test")
	suite.handler = NewUserHandler(services.NewUserService(userRepo))
	suite.authHandler = NewAuthHandler(services.NewAuthService(userRepo, jwtService))

	// Set Gin to test mode
	gin.SetMode(gin.TestMode)
}

// TearDownTest runs after each test
func (suite *UserHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// Helper function to create test data
func (suite *UserHandlerTestSuite) createTestUser(email string, role models.UserRole) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	suite.Require().NoError(err)
	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	suite.db.Create(user)
	return user
}

// Helper function to create a request context, optionally authenticated
func (suite *UserHandlerTestSuite) createContext(method, url string, body []byte, principal *models.User) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if principal != nil {
		middleware.SetPrincipal(c, principal)
	}

	return c, w
}

// TestCreateUser_Bootstrap tests the unauthenticated first-admin signup
func (suite *UserHandlerTestSuite) TestCreateUser_Bootstrap() {
	body, _ := json.Marshal(map[string]string{
		"name":     "Founder",
		"email":    "founder@example.com",
		"password": "password123",
		"role":     "team_member",
	})

	c, w := suite.createContext("POST", "/api/users", body, nil)

	suite.handler.CreateUser(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response struct {
		Role string `json:"role"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), "admin", response.Role)
}

// TestCreateUser_BootstrapClosed tests anonymous signup denial once users exist
func (suite *UserHandlerTestSuite) TestCreateUser_BootstrapClosed() {
	suite.createTestUser("admin@example.com", models.RoleAdmin)

	body, _ := json.Marshal(map[string]string{
		"name":     "Intruder",
		"email":    "intruder@example.com",
		"password": "password123",
	})

	c, w := suite.createContext("POST", "/api/users", body, nil)

	suite.handler.CreateUser(c)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

// TestCreateUser_MemberForbidden tests that team members cannot create users
func (suite *UserHandlerTestSuite) TestCreateUser_MemberForbidden() {
	suite.createTestUser("admin@example.com", models.RoleAdmin)
	member := suite.createTestUser("member@example.com", models.RoleTeamMember)

	body, _ := json.Marshal(map[string]string{
		"name":     "Sneaky",
		"email":    "sneaky@example.com",
		"password": "password123",
	})

	c, w := suite.createContext("POST", "/api/users", body, member)

	suite.handler.CreateUser(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

// TestCreateUser_DuplicateEmail tests the conflict response
func (suite *UserHandlerTestSuite) TestCreateUser_DuplicateEmail() {
	admin := suite.createTestUser("admin@example.com", models.RoleAdmin)

	body, _ := json.Marshal(map[string]string{
		"name":     "Clone",
		"email":    "admin@example.com",
		"password": "password123",
	})

	c, w := suite.createContext("POST", "/api/users", body, admin)

	suite.handler.CreateUser(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

// TestLogin_Success tests the login endpoint
func (suite *UserHandlerTestSuite) TestLogin_Success() {
	suite.createTestUser("admin@example.com", models.RoleAdmin)

	body, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "password123",
	})

	c, w := suite.createContext("POST", "/api/users/login", body, nil)

	suite.authHandler.Login(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(suite.T(), response.Token)
	assert.Equal(suite.T(), "admin@example.com", response.User.Email)
	assert.NotContains(suite.T(), w.Body.String(), "password_hash")
}

// TestLogin_WrongPassword tests the credentials failure response
func (suite *UserHandlerTestSuite) TestLogin_WrongPassword() {
	suite.createTestUser("admin@example.com", models.RoleAdmin)

	body, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})

	c, w := suite.createContext("POST", "/api/users/login", body, nil)

	suite.authHandler.Login(c)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

// TestUpdateMe_IgnoresRole tests that the self-service patch has no role field
func (suite *UserHandlerTestSuite) TestUpdateMe_IgnoresRole() {
	member := suite.createTestUser("member@example.com", models.RoleTeamMember)

	body, _ := json.Marshal(map[string]string{
		"name": "Renamed",
		"role": "admin",
	})

	c, w := suite.createContext("PATCH", "/api/users/update-me", body, member)

	suite.handler.UpdateMe(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var reloaded models.User
	suite.db.First(&reloaded, member.ID)
	assert.Equal(suite.T(), "Renamed", reloaded.Name)
	assert.Equal(suite.T(), models.RoleTeamMember, reloaded.Role)
}

// TestDeactivateUser_Success tests the admin soft delete
func (suite *UserHandlerTestSuite) TestDeactivateUser_Success() {
	suite.createTestUser("admin@example.com", models.RoleAdmin)
	member := suite.createTestUser("member@example.com", models.RoleTeamMember)

	c, w := suite.createContext("DELETE", "/api/users/2", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(member.ID, 10)}}

	suite.handler.DeactivateUser(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var reloaded models.User
	suite.db.First(&reloaded, member.ID)
	assert.False(suite.T(), reloaded.Active)
}

// TestDeactivateUser_NotFound tests the missing-user response
func (suite *UserHandlerTestSuite) TestDeactivateUser_NotFound() {
	c, w := suite.createContext("DELETE", "/api/users/9999", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "9999"}}

	suite.handler.DeactivateUser(c)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func TestUserHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(UserHandlerTestSuite))
}
