// Package interview runs the question/answer loop of a simulated job interview.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smithers-cli/smithers/internal/ai"
	"github.com/smithers-cli/smithers/internal/logger"
)

// ErrEnded is returned by a Console when the candidate ends the session.
var ErrEnded = errors.New("interview ended by candidate")

const (
	DefaultMaxQuestions = 1
	DefaultMaxFollowups = 1
)

// Console is the candidate-facing side of the interview.
type Console interface {
	// BeginQuestion is called before an interviewer turn is streamed.
	BeginQuestion(kind Kind, question int)
	// WriteChunk prints a fragment of the interviewer turn.
	WriteChunk(chunk string)
	// EndQuestion is called once the interviewer turn is complete.
	EndQuestion()
	// ReadAnswer blocks for the candidate's reply. It returns ErrEnded on
	// end of input or interrupt.
	ReadAnswer(ctx context.Context) (string, error)
	// ShowVerdict prints the final recommendation.
	ShowVerdict(v *Verdict)
}

// Config describes a single session.
type Config struct {
	Role         string
	Resume       string
	ResumePath   string
	Model        string
	MaxQuestions int
	MaxFollowups int
}

// Validate checks the session inputs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Role) == "" {
		return errors.New("role is required")
	}
	if strings.TrimSpace(c.Resume) == "" {
		return errors.New("resume text is required")
	}
	if c.MaxQuestions < 1 {
		return fmt.Errorf("max questions must be at least 1, got %d", c.MaxQuestions)
	}
	if c.MaxFollowups < 0 {
		return fmt.Errorf("max follow-ups must not be negative, got %d", c.MaxFollowups)
	}
	return nil
}

type state int

const (
	stateNextQuestion state = iota
	stateFollowup
	stateAnswer
	stateJudge
	stateDone
)

func (s state) String() string {
	switch s {
	case stateNextQuestion:
		return "next_question"
	case stateFollowup:
		return "followup_question"
	case stateAnswer:
		return "answer"
	case stateJudge:
		return "judge"
	default:
		return "done"
	}
}

// Interviewer drives one session against a model.
type Interviewer struct {
	cfg     Config
	chat    ai.Chatter
	console Console
	logger  *zap.Logger
	now     func() time.Time

	transcript *Transcript
	questions  int
	followups  int
}

// New prepares a session. The transcript gets a fresh UUID.
func New(cfg Config, chat ai.Chatter, console Console, log *zap.Logger) (*Interviewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, errors.New("chat client is required")
	}
	if console == nil {
		return nil, errors.New("console is required")
	}

	id := uuid.NewString()

	return &Interviewer{
		cfg:     cfg,
		chat:    chat,
		console: console,
		logger:  logger.WithSession(log, id, cfg.Role),
		now:     time.Now,
		transcript: &Transcript{
			ID:         id,
			Role:       cfg.Role,
			ResumePath: cfg.ResumePath,
			Model:      cfg.Model,
		},
	}, nil
}

// Transcript returns the session record as it stands.
func (iv *Interviewer) Transcript() *Transcript {
	return iv.transcript
}

// Run executes the session until the verdict or until the candidate leaves.
// A candidate leaving is not an error: the transcript is returned with
// StatusEnded. Model failures return the partial transcript with
// StatusFailed, context cancellation with StatusEnded.
func (iv *Interviewer) Run(ctx context.Context) (*Transcript, error) {
	iv.transcript.StartedAt = iv.now()
	defer func() { iv.transcript.FinishedAt = iv.now() }()

	iv.logger.Info("interview started",
		zap.Int("max_questions", iv.cfg.MaxQuestions),
		zap.Int("max_followups", iv.cfg.MaxFollowups),
	)

	current := stateNextQuestion
	for current != stateDone {
		if err := ctx.Err(); err != nil {
			iv.transcript.Status = StatusEnded
			return iv.transcript, err
		}

		iv.logger.Debug("interview step",
			zap.Stringer("state", current),
			zap.Int("questions", iv.questions),
			zap.Int("followups", iv.followups),
		)

		next, err := iv.step(ctx, current)
		if errors.Is(err, ErrEnded) {
			iv.transcript.Status = StatusEnded
			iv.logger.Info("interview ended by candidate", zap.Int("questions_asked", iv.transcript.Questions()))
			return iv.transcript, nil
		}
		if err != nil {
			iv.transcript.Status = StatusFailed
			if ctx.Err() != nil {
				iv.transcript.Status = StatusEnded
			}
			return iv.transcript, fmt.Errorf("%s: %w", current, err)
		}

		current = next
	}

	iv.transcript.Status = StatusCompleted
	iv.logger.Info("interview completed", zap.Int("questions_asked", iv.transcript.Questions()))

	return iv.transcript, nil
}

func (iv *Interviewer) step(ctx context.Context, current state) (state, error) {
	switch current {
	case stateNextQuestion:
		return stateAnswer, iv.askNextQuestion(ctx)
	case stateFollowup:
		return stateAnswer, iv.askFollowup(ctx)
	case stateAnswer:
		if err := iv.readAnswer(ctx); err != nil {
			return stateDone, err
		}
		return iv.afterAnswer(), nil
	case stateJudge:
		return stateDone, iv.judge(ctx)
	default:
		return stateDone, nil
	}
}

// afterAnswer picks the next step: judge once every question and its
// follow-ups are done, otherwise keep digging into the current resume
// entry until the follow-up budget is spent, then move on.
func (iv *Interviewer) afterAnswer() state {
	if iv.questions >= iv.cfg.MaxQuestions && iv.followups >= iv.cfg.MaxFollowups {
		return stateJudge
	}
	if iv.followups < iv.cfg.MaxFollowups {
		return stateFollowup
	}
	return stateNextQuestion
}

func (iv *Interviewer) askNextQuestion(ctx context.Context) error {
	prompt, err := render(nextQuestionTemplate, promptData{
		Role:    iv.cfg.Role,
		Resume:  iv.cfg.Resume,
		History: iv.transcript.History(),
	})
	if err != nil {
		return err
	}

	iv.questions++
	iv.followups = 0

	return iv.ask(ctx, KindQuestion, prompt)
}

func (iv *Interviewer) askFollowup(ctx context.Context) error {
	prompt, err := render(followupQuestionTemplate, promptData{
		Role:    iv.cfg.Role,
		Resume:  iv.cfg.Resume,
		History: iv.transcript.History(),
		Thread:  iv.transcript.Thread(iv.questions),
	})
	if err != nil {
		return err
	}

	iv.followups++

	return iv.ask(ctx, KindFollowup, prompt)
}

func (iv *Interviewer) ask(ctx context.Context, kind Kind, prompt string) error {
	iv.console.BeginQuestion(kind, iv.questions)

	question, err := iv.chat.Chat(ctx, ai.Request{
		Messages: ai.UserPrompt(prompt),
		Stream:   true,
	}, func(chunk string) error {
		iv.console.WriteChunk(chunk)
		return nil
	})
	iv.console.EndQuestion()
	if err != nil {
		return fmt.Errorf("ask %s: %w", kind, err)
	}

	iv.transcript.add(kind, strings.TrimSpace(question), iv.questions)
	return nil
}

func (iv *Interviewer) readAnswer(ctx context.Context) error {
	answer, err := iv.console.ReadAnswer(ctx)
	if err != nil {
		return err
	}

	iv.transcript.add(KindAnswer, strings.TrimSpace(answer), iv.questions)
	return nil
}

func (iv *Interviewer) judge(ctx context.Context) error {
	prompt, err := render(judgementTemplate, promptData{
		Role:    iv.cfg.Role,
		History: iv.transcript.History(),
	})
	if err != nil {
		return err
	}

	raw, err := iv.chat.Chat(ctx, ai.Request{
		Messages: ai.UserPrompt(prompt),
		JSON:     true,
	}, nil)
	if err != nil {
		return fmt.Errorf("judge candidate: %w", err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		iv.logger.Warn("verdict is not structured, showing raw reply", zap.Error(err))
		verdict = unstructuredVerdict(raw)
	}

	iv.transcript.Verdict = verdict
	iv.console.ShowVerdict(verdict)

	return nil
}
