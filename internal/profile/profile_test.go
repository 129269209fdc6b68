package profile

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/lusa-tutor/lusa/internal/curriculum"
)

func TestNew(t *testing.T) {
	p := New("Ana")

	if p.Level != curriculum.A1 || p.Progress.CurrentLevel != curriculum.A1 {
		t.Errorf("level = %s / %s", p.Level, p.Progress.CurrentLevel)
	}
	if p.NativeLanguage != curriculum.English || p.LearningMode != curriculum.Mixed {
		t.Errorf("language/mode = %s/%s", p.NativeLanguage, p.LearningMode)
	}
	if p.XP != 0 || p.Streak != 0 {
		t.Errorf("xp=%d streak=%d", p.XP, p.Streak)
	}
	if len(p.UnlockedCharacters) != 1 || p.UnlockedCharacters[0] != "sofia" || p.SelectedCharacter != "sofia" {
		t.Errorf("characters = %v selected %s", p.UnlockedCharacters, p.SelectedCharacter)
	}
	if p.Progress.CurrentSubjectID != "a1_intro" || p.Progress.CurrentStepIndex != 0 {
		t.Errorf("progress = %+v", p.Progress)
	}
}

func TestCompleteStep(t *testing.T) {
	tests := []struct {
		name          string
		subject       string
		step          int
		wantSubject   string
		wantStep      int
		wantXP        int
		wantCompleted bool
	}{
		{"first step", "a1_intro", 0, "a1_intro", 1, 0, false},
		{"middle step", "a1_intro", 3, "a1_intro", 4, 0, false},
		{"last step", "a1_intro", 5, "a1_greetings", 0, 50, true},
		{"last step of last subject", "a2_desc", 5, "a2_desc", 0, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("Ana")
			p.Progress.CurrentSubjectID = tt.subject
			p.Progress.CurrentStepIndex = tt.step

			completed, err := p.CompleteStep(tt.subject, tt.step)
			if err != nil {
				t.Fatalf("CompleteStep failed: %v", err)
			}
			if completed != tt.wantCompleted {
				t.Errorf("completed = %v, want %v", completed, tt.wantCompleted)
			}
			if p.Progress.CurrentSubjectID != tt.wantSubject {
				t.Errorf("subject = %s, want %s", p.Progress.CurrentSubjectID, tt.wantSubject)
			}
			if p.Progress.CurrentStepIndex != tt.wantStep {
				t.Errorf("step = %d, want %d", p.Progress.CurrentStepIndex, tt.wantStep)
			}
			if p.XP != tt.wantXP {
				t.Errorf("xp = %d, want %d", p.XP, tt.wantXP)
			}
			if p.IsCompleted(tt.subject) != tt.wantCompleted {
				t.Errorf("IsCompleted = %v", p.IsCompleted(tt.subject))
			}
		})
	}
}

func TestCompleteStep_SubjectRecordedOnce(t *testing.T) {
	p := New("Ana")
	_, _ = p.CompleteStep("a1_intro", 5)
	_, _ = p.CompleteStep("a1_intro", 5)

	if len(p.Progress.CompletedSubjects) != 1 {
		t.Errorf("completed = %v", p.Progress.CompletedSubjects)
	}
	if p.XP != 100 {
		t.Errorf("xp = %d, want 100", p.XP)
	}
}

func TestCompleteStep_InvalidIndex(t *testing.T) {
	p := New("Ana")
	for _, i := range []int{-1, 6} {
		if _, err := p.CompleteStep("a1_intro", i); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("CompleteStep(%d) err = %v", i, err)
		}
	}
}

func TestSelectSubject(t *testing.T) {
	p := New("Ana")
	p.Progress.CurrentStepIndex = 3

	if err := p.SelectSubject("a1_intro"); err != nil {
		t.Fatal(err)
	}
	if p.Progress.CurrentStepIndex != 3 {
		t.Error("reselecting the current subject must keep the step")
	}

	if err := p.SelectSubject("a1_food"); err != nil {
		t.Fatal(err)
	}
	if p.Progress.CurrentStepIndex != 0 || p.Progress.CurrentSubjectID != "a1_food" {
		t.Errorf("progress = %+v", p.Progress)
	}

	if err := p.SelectSubject("a9_nothing"); !errors.Is(err, curriculum.ErrUnknownSubject) {
		t.Errorf("err = %v", err)
	}
}

func TestSelectCharacter(t *testing.T) {
	p := New("Ana")

	if err := p.SelectCharacter("Rui"); err != nil {
		t.Fatal(err)
	}
	if p.SelectedCharacter != "rui" || p.Character().Voice != "Puck" {
		t.Errorf("selected = %s", p.SelectedCharacter)
	}
	if len(p.UnlockedCharacters) != 2 {
		t.Errorf("unlocked = %v", p.UnlockedCharacters)
	}
	if err := p.SelectCharacter("clara"); !errors.Is(err, ErrUnknownCharacter) {
		t.Errorf("err = %v", err)
	}
}

func TestOnboard(t *testing.T) {
	p := New("Ana")
	if err := p.Onboard(curriculum.B1, curriculum.French, curriculum.Immersion, "teresa"); err != nil {
		t.Fatal(err)
	}
	if p.Level != curriculum.B1 || p.Progress.CurrentLevel != curriculum.B1 {
		t.Errorf("level = %s", p.Level)
	}
	if p.Streak != 1 || len(p.UnlockedCharacters) != len(curriculum.CharacterIDs) {
		t.Errorf("streak=%d unlocked=%v", p.Streak, p.UnlockedCharacters)
	}
	if p.SelectedCharacter != "teresa" {
		t.Errorf("selected = %s", p.SelectedCharacter)
	}
}

func TestSetInterests(t *testing.T) {
	p := New("Ana")
	p.SetInterests([]string{" música ", "", "futebol", "música"})
	if len(p.Interests) != 2 || p.Interests[0] != "música" || p.Interests[1] != "futebol" {
		t.Errorf("interests = %q", p.Interests)
	}
}

func TestJSONShape(t *testing.T) {
	data, err := json.Marshal(New("Ana"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	progress, ok := raw["progress"].(map[string]any)
	if !ok {
		t.Fatalf("progress missing in %s", data)
	}
	if progress["currentSubjectId"] != "a1_intro" {
		t.Errorf("currentSubjectId = %v", progress["currentSubjectId"])
	}
	if raw["selectedCharacter"] != "sofia" {
		t.Errorf("selectedCharacter = %v", raw["selectedCharacter"])
	}
}
