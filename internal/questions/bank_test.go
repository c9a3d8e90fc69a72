package questions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/interviewer/internal/model"
)

func TestDefaultBank(t *testing.T) {
	b := Default()
	if b.Size() != 6 {
		t.Fatalf("Size() = %d, want 6", b.Size())
	}

	wantLimits := []int{20, 20, 60, 60, 120, 120}
	wantDiff := []model.Difficulty{
		model.DifficultyEasy, model.DifficultyEasy,
		model.DifficultyMedium, model.DifficultyMedium,
		model.DifficultyHard, model.DifficultyHard,
	}
	for i, q := range b.All() {
		if q.TimeLimit != wantLimits[i] {
			t.Errorf("question %d time limit = %d, want %d", i, q.TimeLimit, wantLimits[i])
		}
		if q.Difficulty != wantDiff[i] {
			t.Errorf("question %d difficulty = %q, want %q", i, q.Difficulty, wantDiff[i])
		}
	}
}

func TestGetOutOfRange(t *testing.T) {
	b := Default()
	for _, i := range []int{-1, 6, 100} {
		if _, err := b.Get(i); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Get(%d) error = %v, want ErrOutOfRange", i, err)
		}
	}
	q, err := b.Get(3)
	if err != nil {
		t.Fatalf("Get(3): %v", err)
	}
	if q.ID != "q4" {
		t.Errorf("Get(3).ID = %q, want q4", q.ID)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	b := Default()
	all := b.All()
	all[0].Text = "changed"
	q, _ := b.Get(0)
	if q.Text == "changed" {
		t.Error("mutating All() result changed the bank")
	}
}

func TestByID(t *testing.T) {
	b := Default()
	q, ok := b.ByID("q5")
	if !ok || q.Difficulty != model.DifficultyHard {
		t.Errorf("ByID(q5) = %+v, %v", q, ok)
	}
	if _, ok := b.ByID("nope"); ok {
		t.Error("ByID(nope) should not be found")
	}
}

func TestComposition(t *testing.T) {
	tiers := Default().Composition()
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	want := []Tier{
		{model.DifficultyEasy, 2, 20},
		{model.DifficultyMedium, 2, 60},
		{model.DifficultyHard, 2, 120},
	}
	for i, tier := range tiers {
		if tier != want[i] {
			t.Errorf("tier %d = %+v, want %+v", i, tier, want[i])
		}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		qs   []model.Question
	}{
		{"empty", nil},
		{"missing id", []model.Question{{Text: "x", Difficulty: "easy", TimeLimit: 10}}},
		{"duplicate id", []model.Question{
			{ID: "a", Text: "x", Difficulty: "easy", TimeLimit: 10},
			{ID: "a", Text: "y", Difficulty: "easy", TimeLimit: 10},
		}},
		{"bad difficulty", []model.Question{{ID: "a", Text: "x", Difficulty: "extreme", TimeLimit: 10}}},
		{"zero time limit", []model.Question{{ID: "a", Text: "x", Difficulty: "easy", TimeLimit: 0}}},
		{"missing text", []model.Question{{ID: "a", Difficulty: "easy", TimeLimit: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.qs); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")
	data := `[
		{"id": "go1", "text": "What is a goroutine?", "difficulty": "easy", "time_limit": 30},
		{"id": "go2", "text": "Explain channels.", "difficulty": "hard", "time_limit": 90}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", b.Size())
	}
	q, _ := b.Get(1)
	if q.TimeLimit != 90 || q.Difficulty != model.DifficultyHard {
		t.Errorf("unexpected question %+v", q)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
