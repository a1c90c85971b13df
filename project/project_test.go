package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-groove/sequencer"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	at := time.Date(2024, 3, 9, 21, 15, 0, 0, time.Local)
	s.now = func() time.Time {
		at = at.Add(time.Minute)
		return at
	}
	return s
}

func waltz(t *testing.T) *sequencer.Timeline {
	t.Helper()
	tl, err := sequencer.NewTimeline(sequencer.Waltz, 2)
	if err != nil {
		t.Fatal(err)
	}
	tl.SetHit(sequencer.Kick, 0, true)
	tl.SetHit(sequencer.Snare, 8, true)
	tl.SetHit(sequencer.Snare, 16, true)
	if err := tl.SetOverride(sequencer.Foot, 0, sequencer.Quarter); err != nil {
		t.Fatal(err)
	}
	return tl
}

func TestSaveAndLoadLatest(t *testing.T) {
	s := testStore(t)
	tl := waltz(t)

	first, err := s.Save("demo", "", tl, 96)
	if err != nil {
		t.Fatal(err)
	}
	if first != "2024-03-09_21-16-00.json" {
		t.Errorf("filename = %q", first)
	}
	tl.SetHit(sequencer.Crash, 24, true)
	second, err := s.Save("demo", "with crash", tl, 100)
	if err != nil {
		t.Fatal(err)
	}
	if second != "2024-03-09_21-17-00_with-crash.json" {
		t.Errorf("filename = %q", second)
	}

	saves, err := s.Saves("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(saves) != 2 || saves[0].Filename != second || saves[0].Name != "with-crash" {
		t.Fatalf("saves = %+v", saves)
	}

	loaded, f, norm, err := s.Load("demo", "")
	if err != nil {
		t.Fatal(err)
	}
	if !norm.Clean() {
		t.Errorf("normalization = %s", norm)
	}
	if f.BPM != 100 || f.Version != fileVersion {
		t.Errorf("file header = %+v", f)
	}
	if loaded.TimeSignature() != sequencer.Waltz || loaded.TotalBars() != 2 {
		t.Errorf("loaded %s x%d", loaded.TimeSignature(), loaded.TotalBars())
	}
	if !loaded.Hit(sequencer.Crash, 24) {
		t.Error("newest save should include the crash")
	}
	if l, ok := loaded.Durations().Override(sequencer.Foot, 0); !ok || l != sequencer.Quarter {
		t.Errorf("kick override = %v, %v", l, ok)
	}

	older, _, _, err := s.Load("demo", first)
	if err != nil {
		t.Fatal(err)
	}
	if older.Hit(sequencer.Crash, 24) {
		t.Error("first save should not include the crash")
	}
}

func TestProjectsAndMissing(t *testing.T) {
	s := testStore(t)
	projects, err := s.Projects()
	if err != nil || len(projects) != 0 {
		t.Fatalf("empty store: %v, %v", projects, err)
	}
	if _, _, _, err := s.Load("nothing", ""); !errors.Is(err, ErrNoSaves) {
		t.Errorf("Load of empty project = %v, want ErrNoSaves", err)
	}

	tl := waltz(t)
	for _, name := range []string{"zeta", "alpha"} {
		if _, err := s.Save(name, "", tl, 0); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Save("", "", tl, 0); err != nil {
		t.Fatal(err)
	}
	projects, err = s.Projects()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "untitled", "zeta"}
	if len(projects) != len(want) {
		t.Fatalf("projects = %v, want %v", projects, want)
	}
	for i := range want {
		if projects[i] != want[i] {
			t.Errorf("projects = %v, want %v", projects, want)
		}
	}
}

func TestProjectNamesStayInsideRoot(t *testing.T) {
	s := testStore(t)
	tl := waltz(t)
	for _, name := range []string{"../escape", "..", "a/../../b"} {
		if _, err := s.Save(name, "", tl, 0); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	parent := filepath.Dir(s.Root)
	for _, leaked := range []string{"escape", "b"} {
		if _, err := os.Stat(filepath.Join(parent, leaked)); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("save escaped the store into %s", leaked)
		}
	}
	projects, err := s.Projects()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"..-escape", "a-..-..-b", "untitled"}
	if len(projects) != len(want) {
		t.Fatalf("projects = %v, want %v", projects, want)
	}
	for i := range want {
		if projects[i] != want[i] {
			t.Errorf("projects = %v, want %v", projects, want)
		}
	}
	if _, _, _, err := s.Load("../escape", ""); err != nil {
		t.Errorf("load through the unsanitized name: %v", err)
	}

	outside := filepath.Join(parent, "keep.json")
	if err := os.WriteFile(outside, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("untitled", "../../keep.json"); err == nil {
		t.Error("delete of a file outside the project succeeded")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the store was removed: %v", err)
	}
}

func TestRenameAndDelete(t *testing.T) {
	s := testStore(t)
	name, err := s.Save("demo", "", waltz(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	renamed, err := s.Rename("demo", name, "verse: take/2")
	if err != nil {
		t.Fatal(err)
	}
	if renamed != "2024-03-09_21-16-00_verse--take-2.json" {
		t.Errorf("renamed = %q", renamed)
	}
	if _, err := s.Rename("demo", "notes.txt", "x"); err == nil {
		t.Error("renaming a foreign file should fail")
	}
	if err := s.Delete("demo", renamed); err != nil {
		t.Fatal(err)
	}
	saves, _ := s.Saves("demo")
	if len(saves) != 0 {
		t.Errorf("saves after delete = %+v", saves)
	}
}

func TestSavesSkipsForeignFiles(t *testing.T) {
	s := testStore(t)
	dir := filepath.Join(s.Root, "demo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"readme.json", "2024-03-09_21-16-00.txt", "2024-03-09_21-16-00x.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	saves, err := s.Saves("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(saves) != 0 {
		t.Errorf("saves = %+v, want none", saves)
	}
}

func TestReadFileAcceptsBareSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.json")
	data := `{
  "timeSignature": "4/4",
  "stepsPerBar": 16,
  "totalBars": 1,
  "pattern": {"kick": [0, 8], "snare": [4, 12], "theremin": [2]}
}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	tl, f, norm, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.BPM != 0 {
		t.Errorf("bpm = %v", f.BPM)
	}
	if !norm.Resampled || norm.DroppedHits != 1 {
		t.Errorf("normalization = %s", norm)
	}
	for _, step := range []int{0, 16} {
		if !tl.Hit(sequencer.Kick, step) {
			t.Errorf("kick missing at %d", step)
		}
	}
	if !tl.Hit(sequencer.Snare, 24) {
		t.Error("snare missing at 24")
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, _, _, err := ReadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"timeline": {"timeSignature": "5/7"}}`), 0644)
	if _, _, _, err := ReadFile(bad); err == nil {
		t.Error("unsupported time signature should fail")
	}
}
