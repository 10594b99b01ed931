package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/authsvc/password"
)

func TestSignupStoresHashedPassword(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	user, err := env.engine.Signup(ctx, SignupRequest{
		Username: "alice5",
		Email:    "alice5@example.com",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.ID == "" || user.Role != RoleUser {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "password1" || strings.Contains(user.PasswordHash, "password1") {
		t.Fatal("stored hash must not contain the plaintext")
	}

	stored, err := env.users.FindByUsername(ctx, "alice5")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if stored.PasswordHash == "password1" {
		t.Fatal("plaintext password persisted")
	}
}

func TestSignupValidationOrder(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Signup(ctx, SignupRequest{Username: "taken1", Email: "taken@example.com", Password: "password1"}); err != nil {
		t.Fatalf("seed signup: %v", err)
	}

	tests := []struct {
		name    string
		req     SignupRequest
		kind    error
		field   string
		message string
	}{
		{
			name:    "blank username",
			req:     SignupRequest{Username: "  ", Email: "bad", Password: "x"},
			kind:    ErrInvalidUsername,
			field:   "username",
			message: "Invalid username: must be at least 5 characters long",
		},
		{
			name:    "short username wins over bad email",
			req:     SignupRequest{Username: "bob", Email: "bad", Password: "x"},
			kind:    ErrInvalidUsername,
			field:   "username",
			message: "Invalid username: must be at least 5 characters long",
		},
		{
			name:    "email without tld",
			req:     SignupRequest{Username: "carol5", Email: "carol@example", Password: "x"},
			kind:    ErrInvalidEmail,
			field:   "email",
			message: "Invalid email",
		},
		{
			name:    "blank email",
			req:     SignupRequest{Username: "carol5", Email: "", Password: "password1"},
			kind:    ErrInvalidEmail,
			field:   "email",
			message: "Invalid email",
		},
		{
			name:    "short password",
			req:     SignupRequest{Username: "carol5", Email: "carol@example.com", Password: "1234567"},
			kind:    ErrInvalidPassword,
			field:   "password",
			message: "Invalid password: must be at least 8 characters long",
		},
		{
			name:    "duplicate username",
			req:     SignupRequest{Username: "taken1", Email: "other@example.com", Password: "password1"},
			kind:    ErrInvalidUsername,
			field:   "username",
			message: "The username is already in use",
		},
		{
			name:    "duplicate email",
			req:     SignupRequest{Username: "carol5", Email: "taken@example.com", Password: "password1"},
			kind:    ErrInvalidEmail,
			field:   "email",
			message: "The email is already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Signup(ctx, tt.req)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.field || verr.Message != tt.message {
				t.Fatalf("unexpected error %+v", verr)
			}
		})
	}
}

func TestSignupRole(t *testing.T) {
	env := newTestEngine(t, nil)

	var decoded SignupRequest
	if err := json.Unmarshal([]byte(`{"username":"eve555","role":"ADMIN"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Role != "" {
		t.Fatalf("role must not be accepted from JSON, got %q", decoded.Role)
	}

	admin, err := env.engine.Signup(context.Background(), SignupRequest{
		Username: "root00",
		Email:    "root@example.com",
		Password: "password1",
		Role:     RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Fatalf("programmatic role should be kept, got %q", admin.Role)
	}
}

func TestChangeEmailRejectsConflict(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	for _, req := range []SignupRequest{
		{Username: "alice5", Email: "alice@example.com", Password: "password1"},
		{Username: "bobby5", Email: "bob@example.com", Password: "password1"},
	} {
		if _, err := env.engine.Signup(ctx, req); err != nil {
			t.Fatalf("Signup(%s): %v", req.Username, err)
		}
	}

	err := env.engine.ChangeEmail(ctx, "alice5", "bob@example.com")
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Conflict || verr.Message != "The email is already in use" {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := env.engine.ChangeEmail(ctx, "alice5", "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if err := env.engine.ChangeEmail(ctx, "alice5", "alice@example.com"); err != nil {
		t.Fatalf("unchanged email should succeed: %v", err)
	}
	if err := env.engine.ChangeEmail(ctx, "alice5", "alice@new.example.com"); err != nil {
		t.Fatalf("ChangeEmail: %v", err)
	}

	u, _ := env.users.FindByUsername(ctx, "alice5")
	if u.Email != "alice@new.example.com" {
		t.Fatalf("email not updated: %q", u.Email)
	}
	if ok, _ := env.users.ExistsByEmail(ctx, "alice@example.com"); ok {
		t.Fatal("old email must be released")
	}
}

func TestSignupPasswordLengthFollowsHasher(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("p", 73)

	env := newTestEngine(t, nil)
	if _, err := env.engine.Signup(ctx, SignupRequest{Username: "alice5", Email: "alice5@example.com", Password: long}); err != nil {
		t.Fatalf("argon2id should accept a 73-byte password: %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice5", long); err != nil {
		t.Fatalf("Login with long password: %v", err)
	}

	_, err := env.engine.Signup(ctx, SignupRequest{Username: "bobby5", Email: "bobby5@example.com", Password: strings.Repeat("p", 1025)})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "Invalid password: must be at most 1024 bytes long" {
		t.Fatalf("expected the anti-DoS ceiling, got %v", err)
	}

	bcryptHasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	capped := newTestEngine(t, nil, func(b *Builder) { b.WithHasher(bcryptHasher) })
	_, err = capped.engine.Signup(ctx, SignupRequest{Username: "carol5", Email: "carol5@example.com", Password: long})
	if !errors.As(err, &verr) || verr.Message != "Invalid password: must be at most 72 bytes long" {
		t.Fatalf("bcrypt should cap at 72 bytes, got %v", err)
	}
}

func TestUsernameIsTrimmedOnEveryPath(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	user, err := env.engine.Signup(ctx, SignupRequest{Username: " alice5 ", Email: "alice5@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Username != "alice5" {
		t.Fatalf("stored username %q", user.Username)
	}

	if _, err := env.engine.Login(ctx, " alice5", "password1"); err != nil {
		t.Fatalf("Login with the signup input: %v", err)
	}
	token, err := env.engine.ForgotPassword(ctx, "alice5 ")
	if err != nil || token == "" {
		t.Fatalf("ForgotPassword: token=%q err=%v", token, err)
	}
	if err := env.engine.ChangeEmail(ctx, " alice5", "alice5@new.example.com"); err != nil {
		t.Fatalf("ChangeEmail: %v", err)
	}
}
