package sequencer

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSnapshotRoundTrip(t *testing.T) {
	tl := grooveTimeline(t)
	snap := tl.Snapshot()
	if snap.TimeSignature != "4/4" || snap.StepsPerBar != 32 || snap.TotalBars != 2 {
		t.Fatalf("header = %+v", snap)
	}
	if !reflect.DeepEqual(snap.Pattern["kick"], []int{0, 8}) {
		t.Fatalf("kick = %v", snap.Pattern["kick"])
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	back, norm, err := FromSnapshot(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if !norm.Clean() {
		t.Fatalf("normalization = %s", norm)
	}
	if got := back.Snapshot(); !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip:\n got %+v\nwant %+v", got, snap)
	}
	if back.CanUndo() {
		t.Fatal("a loaded timeline starts with empty history")
	}
}

func TestSnapshotYAML(t *testing.T) {
	snap := grooveTimeline(t).Snapshot()
	data, err := yaml.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Snapshot
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, snap) {
		t.Fatalf("yaml round trip:\n got %+v\nwant %+v", decoded, snap)
	}
}

func TestFromSnapshotNormalizes(t *testing.T) {
	snap := Snapshot{
		TimeSignature: "4/4",
		StepsPerBar:   32,
		TotalBars:     1,
		Pattern: map[string][]int{
			"kick":  {0, 4, 40},
			"snare": {-1, 8},
			"tuba":  {3},
		},
		Overrides: []OverrideState{
			{Voice: "foot", Step: 4, Length: 4},
			{Voice: "foot", Step: 0, Length: 8},
			{Voice: "hand", Step: 0, Length: 2},
			{Voice: "hand", Step: 8, Length: 3},
			{Voice: "tail", Step: 8, Length: 2},
		},
	}
	tl, norm, err := FromSnapshot(snap)
	if err != nil {
		t.Fatal(err)
	}
	if norm.Resampled {
		t.Fatal("grid was not re-sampled")
	}
	if norm.DroppedHits != 3 {
		t.Fatalf("DroppedHits = %d, want 3", norm.DroppedHits)
	}
	if norm.DroppedOverrides != 4 {
		t.Fatalf("DroppedOverrides = %d, want 4", norm.DroppedOverrides)
	}
	if tl.Pattern().CountHits() != 3 {
		t.Fatalf("CountHits = %d, want 3", tl.Pattern().CountHits())
	}
	if l, ok := tl.Durations().Override(Foot, 4); !ok || l != Eighth {
		t.Fatalf("valid override lost: %d %v", l, ok)
	}
}

func TestFromSnapshotDropsOversizedGrid(t *testing.T) {
	for _, spb := range []int{1 << 62, 1 << 28, maxStepsPerBar + 1} {
		snap := Snapshot{
			TimeSignature: "4/4",
			StepsPerBar:   spb,
			TotalBars:     3,
			Pattern:       map[string][]int{"kick": {0, 5}},
			Overrides:     []OverrideState{{Voice: "foot", Step: 0, Length: 2}},
		}
		tl, norm, err := FromSnapshot(snap)
		if err != nil {
			t.Fatalf("stepsPerBar %d: %v", spb, err)
		}
		if !norm.Resampled || norm.DroppedHits != 2 || norm.DroppedOverrides != 1 {
			t.Errorf("stepsPerBar %d: normalization = %s", spb, norm)
		}
		if tl.StepsPerBar() != 32 || tl.TotalBars() != 3 || tl.Pattern().CountHits() != 0 {
			t.Errorf("stepsPerBar %d: got %d steps x%d bars with %d hits",
				spb, tl.StepsPerBar(), tl.TotalBars(), tl.Pattern().CountHits())
		}
	}
}

func TestFromSnapshotResamples(t *testing.T) {
	snap := Snapshot{
		TimeSignature: "4/4",
		StepsPerBar:   24,
		TotalBars:     1,
		Pattern:       map[string][]int{"kick": {0, 6}, "ride": {3}},
		Overrides:     []OverrideState{{Voice: "foot", Step: 0, Length: 4}},
	}
	tl, norm, err := FromSnapshot(snap)
	if err != nil {
		t.Fatal(err)
	}
	if !norm.Resampled || norm.DroppedOverrides != 0 {
		t.Fatalf("normalization = %s", norm)
	}
	if tl.StepsPerBar() != 32 {
		t.Fatalf("StepsPerBar = %d", tl.StepsPerBar())
	}
	if !tl.Hit(Kick, 0) || !tl.Hit(Kick, 8) || !tl.Hit(Ride, 4) {
		t.Fatalf("hits not re-sampled: %v", tl.Snapshot().Pattern)
	}
	if l, ok := tl.Durations().Override(Foot, 0); !ok || l != Eighth {
		t.Fatalf("override = %d %v", l, ok)
	}
}

func TestFromSnapshotErrors(t *testing.T) {
	if _, _, err := FromSnapshot(Snapshot{TimeSignature: "5/3"}); err == nil {
		t.Fatal("unsupported time signature accepted")
	}
	tl, _, err := FromSnapshot(Snapshot{TimeSignature: "3/4", TotalBars: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if tl.TotalBars() != MaxBars {
		t.Fatalf("TotalBars = %d, want %d", tl.TotalBars(), MaxBars)
	}
}
