package model

import (
	"testing"
	"time"
)

func TestParseTransTime(t *testing.T) {
	t.Run("Given a gateway timestamp Then parsed to the exact instant", func(t *testing.T) {
		got := ParseTransTime("20191122063845")

		want := time.Date(2019, time.November, 22, 6, 38, 45, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %s, got %s", want, got)
		}
	})

	t.Run("Given garbage Then falls back to roughly now", func(t *testing.T) {
		before := time.Now().UTC()
		got := ParseTransTime("not-a-timestamp")
		after := time.Now().UTC()

		if got.Before(before) || got.After(after) {
			t.Fatalf("expected fallback in [%s, %s], got %s", before, after, got)
		}
	})

	t.Run("Given a formatted time Then it round-trips", func(t *testing.T) {
		instant := time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)

		if got := ParseTransTime(FormatTransTime(instant)); !got.Equal(instant) {
			t.Fatalf("expected %s, got %s", instant, got)
		}
	})
}

func TestC2BResult(t *testing.T) {
	if res := C2BSuccess("ok"); res.ResultCode != 0 || res.ResultDesc != "ok" {
		t.Errorf("unexpected success result: %+v", res)
	}
	if res := C2BFailure("no"); res.ResultCode != 1 || res.ResultDesc != "no" {
		t.Errorf("unexpected failure result: %+v", res)
	}
}
