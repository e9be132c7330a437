package services

import (
	"errors"
	"testing"

	"github.com/classtask/taskmaster/backend/internal/models"
)

func TestRegister_CreatesIdentityAndProfile(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)

	result, err := svc.Register(&RegisterRequest{
		Name:            "Ms. Rivera",
		Email:           "rivera@school.edu",
		Password:        "password123",
		ConfirmPassword: "password123",
		Role:            "teacher",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User == nil || result.User.ID == 0 {
		t.Fatal("expected a persisted user")
	}
	if result.ProfilePending {
		t.Error("profile should not be pending")
	}
	if result.Profile == nil || result.Profile.Role != models.RoleTeacher {
		t.Error("expected a teacher profile")
	}
	if result.Profile.ID != result.User.ID {
		t.Errorf("profile id %d should equal user id %d", result.Profile.ID, result.User.ID)
	}

	var user models.User
	if err := db.First(&user, result.User.ID).Error; err != nil {
		t.Fatalf("user row missing: %v", err)
	}
	if user.Password == "password123" {
		t.Error("password must not be stored in plaintext")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)

	createAccount(t, db, "First", "dup@school.edu", "student")

	_, err := svc.Register(&RegisterRequest{
		Name:            "Second",
		Email:           "dup@school.edu",
		Password:        "password123",
		ConfirmPassword: "password123",
		Role:            "student",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	var count int64
	db.Model(&models.Profile{}).Where("email = ?", "dup@school.edu").Count(&count)
	if count != 1 {
		t.Errorf("expected 1 profile, found %d", count)
	}
}

func TestRegister_Validation(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{
			"mismatched passwords",
			RegisterRequest{Name: "A", Email: "a@school.edu", Password: "password123", ConfirmPassword: "different", Role: "student"},
			ErrPasswordMismatch,
		},
		{
			"invalid role",
			RegisterRequest{Name: "B", Email: "b@school.edu", Password: "password123", ConfirmPassword: "password123", Role: "admin"},
			ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(&tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, expected %v", err, tt.want)
			}
		})
	}
}

func TestLogin_Success(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)
	createAccount(t, db, "Student One", "one@school.edu", "student")

	result, err := svc.Login(&LoginRequest{
		Email:    "one@school.edu",
		Password: "password123",
	}, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if result.AccessToken == "" {
		t.Error("expected an access token")
	}
	if result.RefreshToken == "" {
		t.Error("expected a refresh token")
	}
	if result.Profile == nil || result.Profile.Name != "Student One" {
		t.Error("expected the student profile")
	}

	// Refresh token is stored hashed, never raw
	var stored models.RefreshToken
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("refresh token row missing: %v", err)
	}
	if stored.TokenHash == result.RefreshToken {
		t.Error("refresh token must be hashed at rest")
	}
	if len(stored.TokenHash) != 64 {
		t.Errorf("token hash length = %d, expected 64", len(stored.TokenHash))
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)
	createAccount(t, db, "Student", "s@school.edu", "student")

	_, err := svc.Login(&LoginRequest{Email: "s@school.edu", Password: "wrong"}, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	// Failed login must not leave session state behind
	var count int64
	db.Model(&models.RefreshToken{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no refresh tokens after failed login, found %d", count)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)

	_, err := svc.Login(&LoginRequest{Email: "ghost@school.edu", Password: "password123"}, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)
	createAccount(t, db, "Student", "r@school.edu", "student")

	login, err := svc.Login(&LoginRequest{Email: "r@school.edu", Password: "password123"}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := svc.Refresh(login.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh must issue a new token")
	}

	// The old token is revoked and cannot be replayed
	if _, err := svc.Refresh(login.RefreshToken, "", ""); err == nil {
		t.Error("replaying a rotated refresh token should fail")
	}

	// The new token still works
	if _, err := svc.Refresh(refreshed.RefreshToken, "", ""); err != nil {
		t.Errorf("new refresh token should be valid: %v", err)
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)
	createAccount(t, db, "Student", "revoke@school.edu", "student")

	login, _ := svc.Login(&LoginRequest{Email: "revoke@school.edu", Password: "password123"}, "", "")

	if err := svc.RevokeRefreshToken(login.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}

	if _, err := svc.Refresh(login.RefreshToken, "", ""); err == nil {
		t.Error("a revoked refresh token should be rejected")
	}

	// Revoking again is harmless
	if err := svc.RevokeRefreshToken(login.RefreshToken); err != nil {
		t.Errorf("second revoke should not error: %v", err)
	}
}

func TestGetProfileByID_Missing(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)

	_, err := svc.GetProfileByID(9999)
	if !errors.Is(err, ErrProfileMissing) {
		t.Errorf("expected ErrProfileMissing, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)
	id := createAccount(t, db, "Student", "pw@school.edu", "student")

	err := svc.ChangePassword(id, &ChangePasswordRequest{
		OldPassword: "password123",
		NewPassword: "newpassword456",
	})
	if err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.Login(&LoginRequest{Email: "pw@school.edu", Password: "password123"}, "", ""); err == nil {
		t.Error("old password should no longer work")
	}
	if _, err := svc.Login(&LoginRequest{Email: "pw@school.edu", Password: "newpassword456"}, "", ""); err != nil {
		t.Errorf("new password should work: %v", err)
	}
}

func TestChangePassword_WrongOld(t *testing.T) {
	db := setupTestDB(t)
	svc := testAuthService(db)
	id := createAccount(t, db, "Student", "pw2@school.edu", "student")

	err := svc.ChangePassword(id, &ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "newpassword456",
	})
	if err == nil {
		t.Error("ChangePassword should fail with wrong old password")
	}
}
