// Package profile holds a learner's settings and course progress and the
// rules that move them forward.
package profile

import (
	"errors"
	"slices"
	"strings"

	"github.com/lusa-tutor/lusa/internal/curriculum"
)

// StepCompletionXP is awarded when the last step of a subject is finished.
const StepCompletionXP = 50

var (
	ErrUnknownCharacter = errors.New("unknown character")
	ErrInvalidStep      = errors.New("step index out of range")
)

// Progress tracks where the learner is in the course.
type Progress struct {
	CurrentLevel      curriculum.Level `json:"currentLevel"`
	CompletedSubjects []string         `json:"completedSubjects"`
	CurrentSubjectID  string           `json:"currentSubjectId"`
	CurrentStepIndex  int              `json:"currentStepIndex"`
}

// Profile is everything the tutor knows about a learner.
type Profile struct {
	Name               string                    `json:"name"`
	Level              curriculum.Level          `json:"level"`
	NativeLanguage     curriculum.NativeLanguage `json:"nativeLanguage"`
	LearningMode       curriculum.LearningMode   `json:"learningMode"`
	Interests          []string                  `json:"interests"`
	Streak             int                       `json:"streak"`
	XP                 int                       `json:"xp"`
	UnlockedCharacters []string                  `json:"unlockedCharacters"`
	SelectedCharacter  string                    `json:"selectedCharacter"`
	Progress           Progress                  `json:"progress"`
}

// New returns the profile of a learner who has not started yet.
func New(name string) *Profile {
	return &Profile{
		Name:               name,
		Level:              curriculum.A1,
		NativeLanguage:     curriculum.English,
		LearningMode:       curriculum.Mixed,
		Interests:          []string{},
		UnlockedCharacters: []string{curriculum.DefaultCharacterID},
		SelectedCharacter:  curriculum.DefaultCharacterID,
		Progress: Progress{
			CurrentLevel:      curriculum.A1,
			CompletedSubjects: []string{},
			CurrentSubjectID:  curriculum.FirstSubjectID,
		},
	}
}

// Character returns the selected tutor.
func (p *Profile) Character() curriculum.Character {
	return curriculum.CharacterByID(p.SelectedCharacter)
}

// CurrentSubject returns the subject in progress.
func (p *Profile) CurrentSubject() curriculum.Subject {
	if s, ok := curriculum.SubjectByID(p.Progress.CurrentSubjectID); ok {
		return s
	}
	return curriculum.Subjects[0]
}

// AddXP adds n experience points.
func (p *Profile) AddXP(n int) {
	p.XP += n
}

// CompleteStep records that the learner finished stepIndex of subjectID.
// Finishing the last step awards StepCompletionXP, marks the subject
// completed and moves on to the next subject. It reports whether the
// subject was completed.
func (p *Profile) CompleteStep(subjectID string, stepIndex int) (bool, error) {
	if stepIndex < 0 || stepIndex > curriculum.LastStep {
		return false, ErrInvalidStep
	}

	if stepIndex < curriculum.LastStep {
		p.Progress.CurrentStepIndex = stepIndex + 1
		return false, nil
	}

	p.XP += StepCompletionXP
	if !slices.Contains(p.Progress.CompletedSubjects, subjectID) {
		p.Progress.CompletedSubjects = append(p.Progress.CompletedSubjects, subjectID)
	}
	p.Progress.CurrentSubjectID = curriculum.NextSubjectID(subjectID)
	p.Progress.CurrentStepIndex = 0
	return true, nil
}

// SelectSubject makes id the current subject. Switching subjects starts
// from the first step.
func (p *Profile) SelectSubject(id string) error {
	if _, ok := curriculum.SubjectByID(id); !ok {
		return curriculum.ErrUnknownSubject
	}
	if id != p.Progress.CurrentSubjectID {
		p.Progress.CurrentStepIndex = 0
	}
	p.Progress.CurrentSubjectID = id
	return nil
}

// IsCompleted reports whether subject id has been finished.
func (p *Profile) IsCompleted(id string) bool {
	return slices.Contains(p.Progress.CompletedSubjects, id)
}

// UnlockCharacter adds id to the unlocked tutors.
func (p *Profile) UnlockCharacter(id string) error {
	if _, ok := curriculum.LookupCharacter(id); !ok {
		return ErrUnknownCharacter
	}
	if !slices.Contains(p.UnlockedCharacters, id) {
		p.UnlockedCharacters = append(p.UnlockedCharacters, id)
	}
	return nil
}

// SelectCharacter switches tutor, unlocking it if needed.
func (p *Profile) SelectCharacter(id string) error {
	c, ok := curriculum.LookupCharacter(id)
	if !ok {
		return ErrUnknownCharacter
	}
	if err := p.UnlockCharacter(c.ID); err != nil {
		return err
	}
	p.SelectedCharacter = c.ID
	return nil
}

// Onboard applies the choices made when a learner first sets up, which
// unlocks every tutor and starts the streak.
func (p *Profile) Onboard(level curriculum.Level, lang curriculum.NativeLanguage, mode curriculum.LearningMode, characterID string) error {
	p.SetLevel(level)
	p.NativeLanguage = lang
	p.LearningMode = mode
	p.UnlockedCharacters = slices.Clone(curriculum.CharacterIDs)
	if p.Streak == 0 {
		p.Streak = 1
	}
	return p.SelectCharacter(characterID)
}

// SetLevel sets the level of both the profile and its progress.
func (p *Profile) SetLevel(l curriculum.Level) {
	p.Level = l
	p.Progress.CurrentLevel = l
}

func (p *Profile) SetNativeLanguage(l curriculum.NativeLanguage) {
	p.NativeLanguage = l
}

func (p *Profile) SetLearningMode(m curriculum.LearningMode) {
	p.LearningMode = m
}

// SetInterests replaces the interests, dropping blanks and duplicates.
func (p *Profile) SetInterests(interests []string) {
	out := make([]string, 0, len(interests))
	for _, s := range interests {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	p.Interests = out
}
