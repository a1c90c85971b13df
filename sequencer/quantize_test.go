package sequencer

import (
	"math"
	"testing"
)

func TestStepsPerBar(t *testing.T) {
	tests := []struct {
		sig  TimeSignature
		want int
	}{
		{Common, 32},
		{Waltz, 24},
		{SixEight, 24},
		{TimeSignature{Beats: 2, Unit: 2}, 32},
		{TimeSignature{Beats: 7, Unit: 8}, 28},
		{TimeSignature{Beats: 5, Unit: 16}, 10},
		{TimeSignature{Beats: 4, Unit: 3}, 0},
		{TimeSignature{Beats: 0, Unit: 4}, 0},
		{TimeSignature{Beats: 17, Unit: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.sig.String(), func(t *testing.T) {
			if got := StepsPerBar(tt.sig); got != tt.want {
				t.Fatalf("StepsPerBar(%s) = %d, want %d", tt.sig, got, tt.want)
			}
		})
	}
}

func TestParseTimeSignature(t *testing.T) {
	ts, err := ParseTimeSignature(" 6/8 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts != SixEight {
		t.Fatalf("got %v, want %v", ts, SixEight)
	}
	for _, bad := range []string{"", "4", "4/x", "x/4", "4/5", "0/4"} {
		if _, err := ParseTimeSignature(bad); err == nil {
			t.Fatalf("ParseTimeSignature(%q) succeeded", bad)
		}
	}
}

func TestStepSeconds(t *testing.T) {
	if got := BarSeconds(120, Common); math.Abs(got-2) > 1e-9 {
		t.Fatalf("BarSeconds(120, 4/4) = %v, want 2", got)
	}
	if got := BarSeconds(120, SixEight); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("BarSeconds(120, 6/8) = %v, want 1.5", got)
	}
	for _, sig := range []TimeSignature{Common, Waltz, SixEight} {
		if got := StepSeconds(120, sig); math.Abs(got-0.0625) > 1e-9 {
			t.Fatalf("StepSeconds(120, %s) = %v, want 0.0625", sig, got)
		}
	}
	if StepSeconds(0, Common) != 0 {
		t.Fatal("zero bpm should give zero step length")
	}
}
