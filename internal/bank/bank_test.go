package bank

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalobadob/kbcquiz/internal/quiz"
)

func TestDefaultBankShape(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Questions) != 20 || len(b.Ladder) != 20 {
		t.Fatalf("questions=%d ladder=%d", len(b.Questions), len(b.Ladder))
	}
	c := Counts(b)
	if c[quiz.DifficultyEasy] != 8 || c[quiz.DifficultyMedium] != 7 || c[quiz.DifficultyHard] != 5 {
		t.Fatalf("difficulty counts %v", c)
	}
	// easy, then medium, then hard
	for i, q := range b.Questions {
		want := quiz.DifficultyHard
		switch {
		case i < 8:
			want = quiz.DifficultyEasy
		case i < 15:
			want = quiz.DifficultyMedium
		}
		if q.Difficulty != want {
			t.Fatalf("question %d is %s, want %s", i, q.Difficulty, want)
		}
	}
	if b.Ladder[19] != 100000000 || b.Ladder[0] != 1000 {
		t.Fatalf("ladder ends %d..%d", b.Ladder[0], b.Ladder[19])
	}
	for _, s := range []int{4, 9, 14} {
		if !b.IsSafeLevel(s) {
			t.Fatalf("%d not a safe level", s)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	doc := `{"questions":[
	  {"prompt":"2+2?","options":["3","4","5","6"],"answer":1,"difficulty":"easy"},
	  {"prompt":"Capital of France?","options":["Rome","Paris","Oslo","Bern"],"answer":1,"difficulty":"hard"}
	],"ladder":[10,20],"safeLevels":[0]}`
	path := filepath.Join(t.TempDir(), "bank.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Questions) != 2 || b.Ladder[1] != 20 || !b.IsSafeLevel(0) {
		t.Fatalf("loaded %+v", b)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejects(t *testing.T) {
	good := func() *quiz.Bank {
		return &quiz.Bank{
			Questions: []quiz.Question{
				{Prompt: "a", Options: [4]string{"1", "2", "3", "4"}, Answer: 0, Difficulty: quiz.DifficultyEasy},
				{Prompt: "b", Options: [4]string{"1", "2", "3", "4"}, Answer: 3, Difficulty: quiz.DifficultyMedium},
			},
			Ladder:     []int{100, 200},
			SafeLevels: []int{0},
		}
	}
	if err := Validate(good()); err != nil {
		t.Fatalf("good bank rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*quiz.Bank)
		msg    string
	}{
		{"empty", func(b *quiz.Bank) { b.Questions = nil; b.Ladder = nil }, "no questions"},
		{"ladder length", func(b *quiz.Bank) { b.Ladder = b.Ladder[:1] }, "ladder has"},
		{"ladder not increasing", func(b *quiz.Bank) { b.Ladder[1] = 100 }, "not above"},
		{"ladder zero", func(b *quiz.Bank) { b.Ladder[0] = 0 }, "not above"},
		{"empty prompt", func(b *quiz.Bank) { b.Questions[1].Prompt = "  " }, "empty prompt"},
		{"empty option", func(b *quiz.Bank) { b.Questions[0].Options[2] = "" }, "option 2"},
		{"answer range", func(b *quiz.Bank) { b.Questions[0].Answer = 4 }, "answer 4"},
		{"difficulty", func(b *quiz.Bank) { b.Questions[0].Difficulty = "expert" }, "difficulty"},
		{"safe range", func(b *quiz.Bank) { b.SafeLevels = []int{2} }, "out of range"},
		{"safe dup", func(b *quiz.Bank) { b.SafeLevels = []int{1, 1} }, "repeated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := good()
			tt.mutate(b)
			err := Validate(b)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("err %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestParseBadJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"questions":`)); err == nil {
		t.Fatal("expected decode error")
	}
}
