package authsvc_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/store/memory"
)

func newExampleEngine() *authsvc.Engine {
	cfg := authsvc.DefaultConfig()
	cfg.JWT.Secret = []byte("example-secret-0123456789abcdefgh")
	cfg.Purge.Interval = 0

	engine, err := authsvc.New().
		WithConfig(cfg).
		WithUserStore(memory.NewUsers()).
		WithRefreshStore(memory.NewRefreshTokens()).
		WithResetStore(memory.NewResetTokens()).
		Build()
	if err != nil {
		panic(err)
	}
	return engine
}

// ExampleNew builds an engine over the in-memory stores.
func ExampleNew() {
	engine := newExampleEngine()
	defer engine.Close()

	fmt.Println(engine.Config().JWT.AccessTTL)
	// Output: 1h0m0s
}

func ExampleEngine_Signup() {
	engine := newExampleEngine()
	defer engine.Close()

	_, err := engine.Signup(context.Background(), authsvc.SignupRequest{
		Username: "al",
		Email:    "al@example.com",
		Password: "password1",
	})
	var verr *authsvc.ValidationError
	if errors.As(err, &verr) {
		fmt.Println(verr.Field + ": " + verr.Message)
	}
	// Output: username: Invalid username: must be at least 5 characters long
}

// ExampleEngine_Login shows the login, validate and rotate cycle.
func ExampleEngine_Login() {
	engine := newExampleEngine()
	defer engine.Close()
	ctx := context.Background()

	if _, err := engine.Signup(ctx, authsvc.SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	}); err != nil {
		panic(err)
	}

	pair, err := engine.Login(ctx, "alice", "password1")
	if err != nil {
		panic(err)
	}
	claims, err := engine.ValidateAccess(pair.AccessToken)
	if err != nil {
		panic(err)
	}
	fmt.Println(pair.TokenType, claims.Subject, claims.Role)

	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		panic(err)
	}
	_, err = engine.Refresh(ctx, pair.RefreshToken)
	fmt.Println(errors.Is(err, authsvc.ErrInvalidRefreshToken))
	// Output:
	// Bearer alice USER
	// true
}

// ExampleEngine_MetricsSnapshot shows how to read in-process counters.
func ExampleEngine_MetricsSnapshot() {
	engine := newExampleEngine()
	defer engine.Close()

	_, _ = engine.Login(context.Background(), "nobody", "password1")
	fmt.Println(engine.MetricsSnapshot().Counters[authsvc.MetricLoginFailure])
	// Output: 1
}
