package authsvc

import (
	"context"
	"testing"
	"time"
)

func collect(t *testing.T, events <-chan AuditEvent, n int) []AuditEvent {
	t.Helper()

	out := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-events:
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestAuditEventsForLoginLifecycle(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEngine(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 64
		c.Audit.DropIfFull = false
	}, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	seedUser(t, env, "alice5")
	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(ctx, "alice5", "wrongpw")
	}
	_, _ = env.engine.Login(ctx, "alice5", "password1")

	events := collect(t, sink.Events(), 1+5+1+1)

	if events[0].Type != auditEventSignupSuccess || !events[0].Success {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	for _, ev := range events[1:6] {
		if ev.Type != auditEventLoginFailure || ev.Reason != string(auditErrInvalidCredentials) || ev.IP != "203.0.113.7" {
			t.Fatalf("unexpected failure event %+v", ev)
		}
	}
	if events[6].Type != auditEventAccountLocked {
		t.Fatalf("expected lock event, got %+v", events[6])
	}
	if events[7].Type != auditEventLoginLocked || events[7].Reason != string(auditErrAccountLocked) {
		t.Fatalf("expected locked rejection, got %+v", events[7])
	}
}

func TestAuditDroppedWithoutSinkPressure(t *testing.T) {
	env := newTestEngine(t, func(c *Config) { c.Audit.Enabled = true })
	seedUser(t, env, "alice5")
	if env.engine.AuditDropped() != 0 {
		t.Fatalf("expected no dropped events, got %d", env.engine.AuditDropped())
	}
}
