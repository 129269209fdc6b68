package curriculum

import (
	"errors"
	"strings"

	"github.com/sahilm/fuzzy"
)

// ErrUnknownSubject is returned when no subject matches.
var ErrUnknownSubject = errors.New("unknown subject")

// StepType is one of the six activities of a subject.
type StepType string

// Step types in lesson order.
const (
	Vocabulario StepType = "vocabulario"
	Escuta      StepType = "escuta"
	Leitura     StepType = "leitura"
	Gramatica   StepType = "gramatica"
	Fala        StepType = "fala"
	Teste       StepType = "teste"
)

// StepTypes lists the step types in the order every subject uses.
var StepTypes = []StepType{Vocabulario, Escuta, Leitura, Gramatica, Fala, Teste}

// LastStep is the index of the final step of a subject.
var LastStep = len(StepTypes) - 1

var stepLabels = map[StepType]string{
	Vocabulario: "Vocabulário",
	Escuta:      "Escuta",
	Leitura:     "Leitura",
	Gramatica:   "Gramática",
	Fala:        "Fala",
	Teste:       "Mini-Teste",
}

// Label returns the display label.
func (s StepType) Label() string {
	return stepLabels[s]
}

// Step is one activity within a subject.
type Step struct {
	Type        StepType
	CharacterID string
	Unlocked    bool
}

// Label returns the display label of the step type.
func (s Step) Label() string {
	return s.Type.Label()
}

// Subject is a themed unit of the course.
type Subject struct {
	ID    string
	Title string
	Level Level
	Steps []Step
}

func newSteps() []Step {
	steps := make([]Step, len(StepTypes))
	for i, t := range StepTypes {
		steps[i] = Step{Type: t, CharacterID: DefaultCharacterID, Unlocked: i == 0}
	}
	return steps
}

func subject(id, title string, level Level) Subject {
	return Subject{ID: id, Title: title, Level: level, Steps: newSteps()}
}

// Subjects is the course in order.
var Subjects = []Subject{
	subject("a1_intro", "Apresentações Pessoais", A1),
	subject("a1_greetings", "Cumprimentos Diários", A1),
	subject("a1_numbers", "Números e Tempo", A1),
	subject("a1_family", "Família e Amigos", A1),
	subject("a1_food", "Comida e Bebidas", A1),
	subject("a1_routine", "Rotina Diária", A1),
	subject("a1_places", "Lugares e Direções", A1),
	subject("a1_shopping", "Compras Básicas", A1),
	subject("a2_past", "Passado", A2),
	subject("a2_desc", "Descrição de Lugares", A2),
}

// FirstSubjectID is where a new learner starts.
const FirstSubjectID = "a1_intro"

// SubjectByID returns the subject with the given id.
func SubjectByID(id string) (Subject, bool) {
	i := subjectIndex(id)
	if i < 0 {
		return Subject{}, false
	}
	return Subjects[i], true
}

// NextSubjectID returns the subject after id. The last subject and
// unknown ids return id itself.
func NextSubjectID(id string) string {
	i := subjectIndex(id)
	if i < 0 || i+1 >= len(Subjects) {
		return id
	}
	return Subjects[i+1].ID
}

func subjectIndex(id string) int {
	for i, s := range Subjects {
		if s.ID == id {
			return i
		}
	}
	return -1
}

type subjectSource []Subject

func (s subjectSource) String(i int) string {
	return s[i].ID + " " + s[i].Title
}

func (s subjectSource) Len() int {
	return len(s)
}

// FindSubject resolves an id or a loosely typed title, e.g. "familia" or
// "compras".
func FindSubject(query string) (Subject, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Subject{}, ErrUnknownSubject
	}
	if s, ok := SubjectByID(strings.ToLower(query)); ok {
		return s, nil
	}

	matches := fuzzy.FindFrom(foldAccents(query), foldedSubjects())
	if len(matches) == 0 {
		return Subject{}, ErrUnknownSubject
	}
	return Subjects[matches[0].Index], nil
}

type foldedSource []string

func (f foldedSource) String(i int) string { return f[i] }
func (f foldedSource) Len() int            { return len(f) }

func foldedSubjects() foldedSource {
	src := subjectSource(Subjects)
	out := make(foldedSource, src.Len())
	for i := range out {
		out[i] = foldAccents(src.String(i))
	}
	return out
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u",
	"ç", "c",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ç", "C",
)

func foldAccents(s string) string {
	return strings.ToLower(accentFolder.Replace(s))
}
