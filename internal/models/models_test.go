package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"10.00", 1000, false},
		{"10", 1000, false},
		{"10.5", 1050, false},
		{"0.99", 99, false},
		{".50", 50, false},
		{" 3.25 ", 325, false},
		{"", 0, true},
		{"-1.00", 0, true},
		{"1.234", 0, true},
		{"abc", 0, true},
		{"1.", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMoney(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMoney(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMoney_String(t *testing.T) {
	if got := Money(2000).String(); got != "20.00" {
		t.Errorf("String() = %q, want 20.00", got)
	}
	if got := Money(5).String(); got != "0.05" {
		t.Errorf("String() = %q, want 0.05", got)
	}
}

func TestMoney_JSONAcceptsStringAndNumber(t *testing.T) {
	var item CartItem
	if err := json.Unmarshal([]byte(`{"product_id":1,"price":"10.00","quantity":1}`), &item); err != nil {
		t.Fatalf("unmarshal string price: %v", err)
	}
	if item.Price != 1000 {
		t.Errorf("Price = %d, want 1000", item.Price)
	}

	if err := json.Unmarshal([]byte(`{"product_id":1,"price":12.5,"quantity":1}`), &item); err != nil {
		t.Fatalf("unmarshal numeric price: %v", err)
	}
	if item.Price != 1250 {
		t.Errorf("Price = %d, want 1250", item.Price)
	}

	out, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `"price":"12.50"`; !strings.Contains(string(out), want) {
		t.Errorf("marshal = %s, want it to contain %s", out, want)
	}
}

func TestRateLimitEntry_BlockedAndStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Minute)

	e := RateLimitEntry{Key: "user:alice", Count: 3, WindowStart: now.Add(-2 * time.Hour)}
	if e.Blocked(now) {
		t.Error("entry without BlockedUntil should not be blocked")
	}
	if !e.Stale(now, time.Hour) {
		t.Error("entry with a 2h old window should be stale")
	}

	e.BlockedUntil = &until
	if !e.Blocked(now) {
		t.Error("entry should be blocked before BlockedUntil")
	}
	if e.Stale(now, time.Hour) {
		t.Error("blocked entry must not be stale")
	}
	if e.Blocked(until) {
		t.Error("entry should unblock at BlockedUntil")
	}
}
