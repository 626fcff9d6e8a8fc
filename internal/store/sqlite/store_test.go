package sqlite

import (
	"testing"
)

func TestBuildLifecycle(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	rec := BuildRecord{
		BuildID:        "build-1",
		AppID:          "org.example.App",
		ManifestPath:   "/src/org.example.App.json",
		ManifestDigest: "abc",
		BuildSystem:    "meson",
		Rebuild:        true,
		Status:         StatusRunning,
		StartedAt:      "2026-01-01T00:00:00Z",
	}
	if err := s.InsertBuild(rec); err != nil {
		t.Fatalf("InsertBuild() error = %v", err)
	}
	code := 0
	if err := s.InsertStep(StepRecord{BuildID: "build-1", Index: 0, Command: "meson _build", ExitCode: &code, DurationMS: 12}); err != nil {
		t.Fatalf("InsertStep() error = %v", err)
	}
	if err := s.InsertStep(StepRecord{BuildID: "build-1", Index: 1, Command: "ninja -C _build"}); err != nil {
		t.Fatalf("InsertStep() error = %v", err)
	}
	if err := s.UpdateBuildCompletion("build-1", StatusFailed, 2, "ninja failed"); err != nil {
		t.Fatalf("UpdateBuildCompletion() error = %v", err)
	}

	got, err := s.GetBuild("build-1")
	if err != nil {
		t.Fatalf("GetBuild() error = %v", err)
	}
	if got.Status != StatusFailed || got.Steps != 2 || !got.Rebuild || got.LastError != "ninja failed" || got.EndedAt == "" {
		t.Fatalf("unexpected record: %+v", got)
	}

	steps, err := s.ListSteps("build-1")
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(steps) != 2 || steps[0].ExitCode == nil || *steps[0].ExitCode != 0 || steps[1].ExitCode != nil {
		t.Fatalf("unexpected steps: %+v", steps)
	}
}

func TestListBuildsNewestFirst(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	for _, r := range []BuildRecord{
		{BuildID: "old", AppID: "a", Status: StatusSucceeded, StartedAt: "2026-01-01T00:00:00Z"},
		{BuildID: "new", AppID: "a", Status: StatusSkipped, StartedAt: "2026-02-01T00:00:00Z"},
	} {
		if err := s.InsertBuild(r); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListBuilds(1)
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(got) != 1 || got[0].BuildID != "new" {
		t.Fatalf("unexpected list: %+v", got)
	}
	if _, err := s.GetBuild("missing"); err == nil {
		t.Fatal("expected error for unknown build")
	}
}
