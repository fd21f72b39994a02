package core

import (
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestSeverityValidate(t *testing.T) {
	for _, s := range []Severity{SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError} {
		if err := s.Validate(); err != nil {
			t.Fatalf("severity %q expected ok, got %v", s, err)
		}
	}
	if err := Severity("fatal").Validate(); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestRecurringPaymentValidate(t *testing.T) {
	good := RecurringPayment{
		Name:       "Netflix",
		Amount:     Money{Cents: 12000},
		DayOfMonth: 15,
		Active:     true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []RecurringPayment{
		{Name: "", Amount: Money{Cents: 1}, DayOfMonth: 1},
		{Name: "a", Amount: Money{Cents: 0}, DayOfMonth: 1},
		{Name: "a", Amount: Money{Cents: 1}, DayOfMonth: 0},
		{Name: "a", Amount: Money{Cents: 1}, DayOfMonth: 32},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNotificationValidate(t *testing.T) {
	good := Notification{
		Title:    "Upcoming payment: Netflix",
		Message:  "Netflix is due today",
		Severity: SeverityInfo,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Notification{
		{Title: "", Message: "m", Severity: SeverityInfo},
		{Title: "t", Message: "", Severity: SeverityInfo},
		{Title: "t", Message: "m", Severity: "loud"},
	}
	for i, n := range bads {
		if err := n.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNotifiedOn(t *testing.T) {
	day15 := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	p := RecurringPayment{Name: "Rent", Amount: Money{Cents: 100}, DayOfMonth: 15}

	if p.NotifiedOn(day15) {
		t.Fatalf("nil LastNotifiedAt should never match")
	}

	stamp := time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)
	p.LastNotifiedAt = &stamp
	if !p.NotifiedOn(day15) {
		t.Fatalf("same calendar date should match regardless of time of day")
	}

	nextDay := day15.AddDate(0, 0, 1)
	if p.NotifiedOn(nextDay) {
		t.Fatalf("different calendar date should not match")
	}
}

func TestSameDate(t *testing.T) {
	a := time.Date(2025, 1, 31, 0, 0, 1, 0, time.UTC)
	b := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	c := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if !SameDate(a, b) {
		t.Fatalf("expected same date")
	}
	if SameDate(b, c) {
		t.Fatalf("expected different dates")
	}
}
