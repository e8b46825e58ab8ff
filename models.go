package main

import "time"

// Classification kinds. Each kind has its own category namespace and its own
// confidence threshold; there is no cross-kind coupling.
const (
	KindDomainRouting     = "domain_routing"
	KindEntityRecognition = "entity_recognition"
	KindPriority          = "priority"
)

type Note struct {
	ID        int64
	Title     string
	Content   string
	Domain    string // empty while a routing clarification is pending
	Keywords  string // comma-separated, lowercase
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Task struct {
	ID               int64
	NoteID           int64
	Text             string // original text from the note
	Action           string // verb-first rewrite
	Priority         string // "high", "medium", "low"
	EstimatedMinutes int
	Domain           string
	Status           string // "open" or "completed"
	CompletedAt      time.Time
	CreatedAt        time.Time
}

type Domain struct {
	ID               int64
	Path             string // e.g. "work/marriott", immutable once registered
	Name             string
	Color            string
	TargetPercentage float64
	LearnedKeywords  string // comma-separated, lowercase
	Active           bool
	CreatedAt        time.Time
}

const neutralPrior = 0.5

// ConfidenceRecord is the learned accuracy state for one (kind, label) category.
type ConfidenceRecord struct {
	Kind                string
	Label               string
	TotalObservations   int
	CorrectObservations int
	UpdatedAt           time.Time
}

// Accuracy returns correct/total, or the neutral prior when there is no history.
func (r ConfidenceRecord) Accuracy() float64 {
	if r.TotalObservations == 0 {
		return neutralPrior
	}
	return float64(r.CorrectObservations) / float64(r.TotalObservations)
}

type ClarificationQuestion struct {
	ID             int64
	QuestionType   string // classification kind that raised it
	QuestionText   string
	SubjectType    string // "note", "task", "entity"
	SubjectID      int64
	SubjectText    string
	CandidateLabel string // the gate's best guess at creation time
	Options        string // comma-separated; empty means free text
	Status         string // "pending", "answered", "skipped"
	Answer         string
	CreatedAt      time.Time
	AnsweredAt     time.Time
}

const (
	questionStatusPending  = "pending"
	questionStatusAnswered = "answered"
	questionStatusSkipped  = "skipped"
)

// DecisionOutcome tags the result of one gate evaluation.
type DecisionOutcome string

const (
	OutcomeAccepted        DecisionOutcome = "accepted"
	OutcomeQuestionPending DecisionOutcome = "question_pending"
)

// Decision is the per-request result of the decision gate. Either the
// classification was accepted (provisionally trusted) or a clarification
// question was created; QuestionID is set only in the latter case.
type Decision struct {
	Outcome           DecisionOutcome
	Kind              string
	Label             string
	RawConfidence     float64
	BlendedConfidence float64
	QuestionID        int64
}

func (d Decision) Accepted() bool { return d.Outcome == OutcomeAccepted }

// DecisionRecord is one row of the decision audit log, the input to the
// rolling-window threshold recalibration and the silent-acceptance sweep.
type DecisionRecord struct {
	ID                int64
	Kind              string
	Label             string
	RawConfidence     float64
	BlendedConfidence float64
	Accepted          bool
	Corrected         bool
	Resolved          bool // feedback (explicit or implicit) already applied
	SubjectType       string
	SubjectID         int64
	CreatedAt         time.Time
}
