package session

import (
	"testing"
	"time"
)

func TestCutover_ExpiresAtDeadline(t *testing.T) {
	c, err := Parse("2026-08-28 16:00", "America/New_York")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !c.Enabled() {
		t.Fatal("expected cutover enabled")
	}

	before := c.Deadline().Add(-time.Minute)
	after := c.Deadline().Add(time.Minute)

	if c.Expired(before) {
		t.Error("expired before deadline")
	}
	if !c.Expired(c.Deadline()) {
		t.Error("not expired exactly at deadline")
	}
	if !c.Expired(after) {
		t.Error("not expired after deadline")
	}
}

func TestCutover_DisabledNeverExpires(t *testing.T) {
	c, err := Parse("", "America/New_York")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Enabled() {
		t.Fatal("empty value should disable the cutover")
	}
	if c.Expired(time.Now().AddDate(10, 0, 0)) {
		t.Error("disabled cutover expired")
	}
}

func TestCutover_BadZone(t *testing.T) {
	if _, err := Parse("2026-08-28 16:00", "Not/AZone"); err == nil {
		t.Fatal("expected error for unknown time zone")
	}
}

func TestCutover_Remaining(t *testing.T) {
	c, err := Parse("2026-08-28 16:00", "America/New_York")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := c.Remaining(c.Deadline().Add(-time.Hour)); got != time.Hour {
		t.Errorf("expected 1h remaining, got %v", got)
	}
	if got := c.Remaining(c.Deadline().Add(time.Hour)); got != 0 {
		t.Errorf("expected 0 remaining after deadline, got %v", got)
	}
}
