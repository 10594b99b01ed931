package authsvc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrEthical07/authsvc/store"
	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Signup validates req, hashes the password and stores a new user. Checks
// run in a fixed order and the first violation is returned as a
// *ValidationError: username shape, email shape, password policy, then
// username and email availability.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (User, error) {
	if e == nil {
		return User{}, ErrEngineNotReady
	}

	user, err := e.signup(ctx, req)
	if err != nil {
		switch {
		case isConflict(err):
			e.metricInc(MetricSignupDuplicate)
		case errors.Is(err, ErrInternal):
		default:
			e.metricInc(MetricSignupInvalid)
		}
		e.emitAudit(ctx, auditEventSignupFailure, false, req.Username, err, nil)
		return User{}, err
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, user.Username, nil, nil)
	return user, nil
}

func (e *Engine) signup(ctx context.Context, req SignupRequest) (User, error) {
	username := normalizeUsername(req.Username)
	email := strings.TrimSpace(req.Email)

	if err := e.checkUsername(username); err != nil {
		return User{}, err
	}
	if err := checkEmail(email); err != nil {
		return User{}, err
	}
	if err := e.checkPassword(req.Password); err != nil {
		return User{}, err
	}
	if err := e.usernameAvailable(ctx, username); err != nil {
		return User{}, err
	}
	if err := e.emailAvailable(ctx, email); err != nil {
		return User{}, err
	}

	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInternal, role)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return User{}, e.internalError("hash password", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, e.internalError("generate user id", err)
	}

	now := e.clock.Now().UTC()
	saved, err := e.users.Save(ctx, User{
		ID:           id.String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent signup; report it like the
			// availability check would have.
			return User{}, e.classifyConflict(ctx, username, email)
		}
		return User{}, e.internalError("save user", err, "username", username)
	}
	return saved, nil
}

// ChangeEmail moves username to a new address. The address must be
// well-formed and unused by any other account.
func (e *Engine) ChangeEmail(ctx context.Context, username, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	username = normalizeUsername(username)
	email = strings.TrimSpace(email)

	err := e.changeEmail(ctx, username, email)
	e.emitAudit(ctx, auditEventEmailChange, err == nil, username, err, nil)
	if err == nil {
		e.metricInc(MetricEmailChange)
	}
	return err
}

func (e *Engine) changeEmail(ctx context.Context, username, email string) error {
	if err := checkEmail(email); err != nil {
		return err
	}

	current, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return e.internalError("find user", err, "username", username)
	}
	if current.Email == email {
		return nil
	}
	if err := e.emailAvailable(ctx, email); err != nil {
		return err
	}

	if err := e.users.UpdateEmail(ctx, username, email, e.clock.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return alreadyInUse("email")
		case errors.Is(err, store.ErrNotFound):
			return ErrInvalidCredentials
		}
		return e.internalError("update email", err, "username", username)
	}
	return nil
}

func (e *Engine) checkUsername(username string) error {
	if username == "" || len([]rune(username)) < e.config.Signup.MinUsernameLength {
		return invalidUsername(fmt.Sprintf("Invalid username: must be at least %d characters long", e.config.Signup.MinUsernameLength))
	}
	return nil
}

// normalizeUsername is applied on every path that takes a username, so the
// stored name and every later lookup agree.
func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func checkEmail(email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return invalidEmail("Invalid email")
	}
	return nil
}

func (e *Engine) checkPassword(pw string) error {
	if len([]rune(pw)) < e.config.Password.MinLength {
		return invalidPassword(fmt.Sprintf("Invalid password: must be at least %d characters long", e.config.Password.MinLength))
	}
	if len(pw) > e.maxPasswordBytes {
		return invalidPassword(fmt.Sprintf("Invalid password: must be at most %d bytes long", e.maxPasswordBytes))
	}
	return nil
}

func (e *Engine) usernameAvailable(ctx context.Context, username string) error {
	taken, err := e.users.ExistsByUsername(ctx, username)
	if err != nil {
		return e.internalError("check username", err, "username", username)
	}
	if taken {
		return alreadyInUse("username")
	}
	return nil
}

func (e *Engine) emailAvailable(ctx context.Context, email string) error {
	taken, err := e.users.ExistsByEmail(ctx, email)
	if err != nil {
		return e.internalError("check email", err)
	}
	if taken {
		return alreadyInUse("email")
	}
	return nil
}

func (e *Engine) classifyConflict(ctx context.Context, username, email string) error {
	if err := e.usernameAvailable(ctx, username); err != nil {
		return err
	}
	if err := e.emailAvailable(ctx, email); err != nil {
		return err
	}
	return alreadyInUse("username")
}

func isConflict(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Conflict
}
