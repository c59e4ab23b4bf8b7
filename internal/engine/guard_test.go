package engine

import (
	"testing"
	"time"
)

func TestGuardRejectsWhileHeld(t *testing.T) {
	g := NewCooldownGuard(20 * time.Millisecond)

	if !g.Acquire("u1") {
		t.Fatal("first acquire should succeed")
	}
	if g.Acquire("u1") {
		t.Fatal("second acquire for the same author should be rejected")
	}
	if !g.Acquire("u2") {
		t.Fatal("acquire for a different author should succeed")
	}
}

func TestGuardReleaseIsDelayed(t *testing.T) {
	g := NewCooldownGuard(30 * time.Millisecond)

	g.Acquire("u1")
	g.Release("u1")

	if g.Acquire("u1") {
		t.Fatal("acquire during the cooldown window should be rejected")
	}

	time.Sleep(60 * time.Millisecond)
	if !g.Acquire("u1") {
		t.Fatal("acquire after the cooldown window should succeed")
	}
}

func TestGuardZeroDelayReleasesPromptly(t *testing.T) {
	g := NewCooldownGuard(0)

	g.Acquire("u1")
	g.Release("u1")

	time.Sleep(10 * time.Millisecond)
	if g.Held("u1") {
		t.Fatal("marker should be gone after a zero-delay release")
	}
}
