package interview

import (
	"strings"
	"time"
)

// Kind classifies a transcript turn.
type Kind string

const (
	KindQuestion Kind = "question"
	KindFollowup Kind = "followup"
	KindAnswer   Kind = "answer"
)

// Status is the outcome of a session.
type Status string

const (
	StatusCompleted Status = "completed"
	// StatusEnded marks a session the candidate left before the verdict.
	StatusEnded Status = "ended"
	// StatusFailed marks a session cut short by a model or transport error.
	StatusFailed Status = "failed"
)

// Turn is one entry of the conversation.
type Turn struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Content string `json:"content" yaml:"content"`
	// Question is the 1-based index of the resume question the turn belongs to.
	Question int `json:"question" yaml:"question"`
}

// Transcript is the record of one interview session.
type Transcript struct {
	ID         string    `json:"id" yaml:"id"`
	Role       string    `json:"role" yaml:"role"`
	ResumePath string    `json:"resume_path" yaml:"resume_path"`
	Model      string    `json:"model" yaml:"model"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Status     Status    `json:"status" yaml:"status"`
	Turns      []Turn    `json:"turns" yaml:"turns"`
	Verdict    *Verdict  `json:"verdict,omitempty" yaml:"verdict,omitempty"`
}

func (t *Transcript) add(kind Kind, content string, question int) {
	t.Turns = append(t.Turns, Turn{Kind: kind, Content: content, Question: question})
}

// History renders the whole conversation the way the prompts expect it.
func (t *Transcript) History() string {
	return formatTurns(t.Turns)
}

// Thread renders the turns that belong to the given question.
func (t *Transcript) Thread(question int) string {
	thread := make([]Turn, 0, len(t.Turns))
	for _, turn := range t.Turns {
		if turn.Question == question {
			thread = append(thread, turn)
		}
	}
	return formatTurns(thread)
}

// Questions counts the interviewer turns, follow-ups included.
func (t *Transcript) Questions() int {
	n := 0
	for _, turn := range t.Turns {
		if turn.Kind != KindAnswer {
			n++
		}
	}
	return n
}

func formatTurns(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := "QUESTION: "
		if turn.Kind == KindAnswer {
			label = "ANSWER: "
		}
		lines = append(lines, label+turn.Content)
	}
	return strings.Join(lines, "\n")
}
