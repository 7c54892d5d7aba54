package testhelpers

import (
	"testing"
	"time"

	"facilityops/internal/config"
	"facilityops/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestJWTSecret = "test-secret-that-is-at-least-32-bytes-long"
	TestIssuer    = "facilityops-test"
	TestPassword  = "secret1"
)

// AuthConfig uses the minimum bcrypt cost so tests stay fast.
func AuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        TestJWTSecret,
		TokenTTL:         30 * 24 * time.Hour,
		Issuer:           TestIssuer,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 5,
		LoginWindow:      15 * time.Minute,
	}
}

// NewUser returns a user whose password is TestPassword.
func NewUser(role models.Role) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:           uuid.New(),
		FirstName:    "Test",
		LastName:     string(role),
		Email:        uniqueEmail(string(role)),
		PasswordHash: string(hash),
		Phone:        "555-0100",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SignToken issues a token the auth service accepts under AuthConfig.
func SignToken(t *testing.T, user *models.User, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"iss":  TestIssuer,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

// ValidWorkOrder returns input that passes every validation rule.
func ValidWorkOrder() *models.WorkOrder {
	return &models.WorkOrder{
		Title:               "Tank 7 entry survey",
		Description:         "Annual confined space survey",
		Priority:            models.PriorityHigh,
		AssignedTo:          "Jordan Lee",
		DueDate:             models.NewDate(2025, time.July, 1),
		CustomerName:        "Acme Water",
		CustomerContact:     "ops@acme.example",
		Location:            "Plant 3",
		DateOfSurvey:        models.NewDate(2025, time.June, 20),
		Surveyors:           "J. Smith, R. Patel",
		ConfinedSpaceName:   "Tank 7",
		Building:            "B1",
		LocationDescription: "North yard behind the pump house",
		NumberOfEntryPoints: 2,
		Assessment: models.Assessment{
			IsConfinedSpace:              models.Yes,
			PermitRequired:               models.Yes,
			HasAtmosphericHazard:         models.Yes,
			AtmosphericHazardDescription: "Possible H2S accumulation",
			RequiresPPE:                  models.Yes,
			PPEList:                      "Harness, 4-gas monitor",
		},
	}
}
