package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/smithers-cli/smithers/internal/ai"
)

const testResume = "Jane Doe\nSenior Go engineer at Acme, built the billing pipeline.\nPython at Initech."

type fakeChat struct {
	requests []ai.Request
	replies  []string
	judgment string
	err      error
	failAt   int
}

func (f *fakeChat) Chat(_ context.Context, req ai.Request, fn ai.ChunkFunc) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil && len(f.requests) >= f.failAt {
		return "", f.err
	}

	if req.JSON {
		return f.judgment, nil
	}

	reply := fmt.Sprintf("Question %d?", len(f.requests))
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}

	// Stream in two pieces to exercise chunk forwarding.
	half := len(reply) / 2
	if fn != nil {
		if err := fn(reply[:half]); err != nil {
			return "", err
		}
		if err := fn(reply[half:]); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func (f *fakeChat) prompt(i int) string {
	return f.requests[i].Messages[len(f.requests[i].Messages)-1].Content
}

type event struct {
	kind string
	text string
}

type scriptedConsole struct {
	answers []string
	events  []event
	verdict *Verdict
	current strings.Builder
}

func (c *scriptedConsole) BeginQuestion(kind Kind, question int) {
	c.events = append(c.events, event{kind: "begin", text: fmt.Sprintf("%s#%d", kind, question)})
	c.current.Reset()
}

func (c *scriptedConsole) WriteChunk(chunk string) {
	c.current.WriteString(chunk)
}

func (c *scriptedConsole) EndQuestion() {
	c.events = append(c.events, event{kind: "printed", text: c.current.String()})
}

func (c *scriptedConsole) ReadAnswer(context.Context) (string, error) {
	if len(c.answers) == 0 {
		return "", ErrEnded
	}
	answer := c.answers[0]
	c.answers = c.answers[1:]
	c.events = append(c.events, event{kind: "answer", text: answer})
	return answer, nil
}

func (c *scriptedConsole) ShowVerdict(v *Verdict) {
	c.verdict = v
}

func newTestInterviewer(t *testing.T, cfg Config, chat ai.Chatter, console Console) *Interviewer {
	t.Helper()
	if cfg.Role == "" {
		cfg.Role = "Backend Engineer"
	}
	if cfg.Resume == "" {
		cfg.Resume = testResume
	}
	iv, err := New(cfg, chat, console, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return iv
}

func TestRunFullSession(t *testing.T) {
	chat := &fakeChat{
		replies:  []string{"Tell me about the billing pipeline.", "How did you test it?"},
		judgment: `{"recommend": true, "score": 8, "strengths": ["ownership"], "concerns": [], "summary": "Solid."}`,
	}
	console := &scriptedConsole{answers: []string{"I built it in Go.", "Property tests."}}

	iv := newTestInterviewer(t, Config{MaxQuestions: 1, MaxFollowups: 1}, chat, console)

	transcript, err := iv.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transcript.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", transcript.Status)
	}

	if len(chat.requests) != 3 {
		t.Fatalf("expected question, follow-up and judgement requests, got %d", len(chat.requests))
	}

	first := chat.prompt(0)
	if !strings.Contains(first, "Backend Engineer") {
		t.Fatalf("expected role in first prompt: %s", first)
	}
	if !strings.Contains(first, testResume) {
		t.Fatalf("expected resume in first prompt: %s", first)
	}
	if !chat.requests[0].Stream || chat.requests[0].JSON {
		t.Fatalf("expected streamed plain question request, got %+v", chat.requests[0])
	}

	followup := chat.prompt(1)
	if !strings.Contains(followup, "QUESTION: Tell me about the billing pipeline.\nANSWER: I built it in Go.") {
		t.Fatalf("expected thread in follow-up prompt: %s", followup)
	}

	judgement := chat.prompt(2)
	if !chat.requests[2].JSON {
		t.Fatalf("expected judgement to request JSON")
	}
	if strings.Contains(judgement, testResume) {
		t.Fatalf("judgement prompt should rely on the interview only")
	}
	if !strings.Contains(judgement, "ANSWER: Property tests.") {
		t.Fatalf("expected full history in judgement prompt: %s", judgement)
	}

	wantKinds := []Kind{KindQuestion, KindAnswer, KindFollowup, KindAnswer}
	if len(transcript.Turns) != len(wantKinds) {
		t.Fatalf("expected %d turns, got %+v", len(wantKinds), transcript.Turns)
	}
	for i, kind := range wantKinds {
		if transcript.Turns[i].Kind != kind {
			t.Fatalf("turn %d: expected %s, got %s", i, kind, transcript.Turns[i].Kind)
		}
		if transcript.Turns[i].Question != 1 {
			t.Fatalf("turn %d: expected question index 1, got %d", i, transcript.Turns[i].Question)
		}
	}

	if console.verdict == nil || !console.verdict.Recommend || console.verdict.Score != 8 {
		t.Fatalf("unexpected verdict shown: %+v", console.verdict)
	}
	if transcript.Verdict != console.verdict {
		t.Fatalf("expected transcript to keep the shown verdict")
	}
	if transcript.ID == "" || transcript.StartedAt.IsZero() || transcript.FinishedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", transcript)
	}
}

func TestRunPrintsQuestionBeforeReadingAnswer(t *testing.T) {
	chat := &fakeChat{replies: []string{"Why Go?"}}
	console := &scriptedConsole{}

	iv := newTestInterviewer(t, Config{MaxQuestions: 1, MaxFollowups: 0}, chat, console)

	if _, err := iv.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(console.events) < 2 {
		t.Fatalf("expected printed question, got %+v", console.events)
	}
	if console.events[0] != (event{kind: "begin", text: "question#1"}) {
		t.Fatalf("unexpected first event: %+v", console.events[0])
	}
	if console.events[1] != (event{kind: "printed", text: "Why Go?"}) {
		t.Fatalf("expected streamed question to be printed whole, got %+v", console.events[1])
	}
}

func TestRunEndOfInputEndsSession(t *testing.T) {
	chat := &fakeChat{}
	console := &scriptedConsole{}

	iv := newTestInterviewer(t, Config{MaxQuestions: 3, MaxFollowups: 1}, chat, console)

	transcript, err := iv.Run(context.Background())
	if err != nil {
		t.Fatalf("leaving the interview must not be an error, got %v", err)
	}

	if transcript.Status != StatusEnded {
		t.Fatalf("expected ended status, got %s", transcript.Status)
	}
	if transcript.Verdict != nil || console.verdict != nil {
		t.Fatalf("expected no verdict when the candidate leaves")
	}
	if len(chat.requests) != 1 {
		t.Fatalf("expected only the first question to be requested, got %d", len(chat.requests))
	}
}

func TestAfterAnswerSchedule(t *testing.T) {
	tests := []struct {
		name         string
		maxQuestions int
		maxFollowups int
		want         []Kind
	}{
		{
			name:         "no follow-ups",
			maxQuestions: 3,
			maxFollowups: 0,
			want:         []Kind{KindQuestion, KindQuestion, KindQuestion},
		},
		{
			name:         "two questions with one follow-up each",
			maxQuestions: 2,
			maxFollowups: 1,
			want:         []Kind{KindQuestion, KindFollowup, KindQuestion, KindFollowup},
		},
		{
			name:         "single question with two follow-ups",
			maxQuestions: 1,
			maxFollowups: 2,
			want:         []Kind{KindQuestion, KindFollowup, KindFollowup},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{judgment: `{"recommend": false, "summary": "Not yet."}`}
			answers := make([]string, len(tt.want))
			for i := range answers {
				answers[i] = fmt.Sprintf("answer %d", i+1)
			}
			console := &scriptedConsole{answers: answers}

			iv := newTestInterviewer(t, Config{MaxQuestions: tt.maxQuestions, MaxFollowups: tt.maxFollowups}, chat, console)

			transcript, err := iv.Run(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var asked []Kind
			for _, turn := range transcript.Turns {
				if turn.Kind != KindAnswer {
					asked = append(asked, turn.Kind)
				}
			}

			if fmt.Sprint(asked) != fmt.Sprint(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, asked)
			}
			if transcript.Status != StatusCompleted || transcript.Verdict == nil {
				t.Fatalf("expected completed session with verdict, got %+v", transcript)
			}
			if len(console.answers) != 0 {
				t.Fatalf("expected every scripted answer to be consumed, %d left", len(console.answers))
			}
		})
	}
}

func TestRunModelErrorIsReturned(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("%w: connection refused", ai.ErrUnreachable), failAt: 1}
	console := &scriptedConsole{answers: []string{"hi"}}

	iv := newTestInterviewer(t, Config{MaxQuestions: 1}, chat, console)

	transcript, err := iv.Run(context.Background())
	if !errors.Is(err, ai.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if transcript == nil || transcript.Status != StatusFailed {
		t.Fatalf("expected partial transcript marked failed, got %+v", transcript)
	}
}

func TestRunModelErrorMidSessionKeepsTurns(t *testing.T) {
	chat := &fakeChat{err: errors.New("ollama returned 500: boom"), failAt: 2}
	console := &scriptedConsole{answers: []string{"I led the migration."}}

	iv := newTestInterviewer(t, Config{MaxQuestions: 1, MaxFollowups: 1}, chat, console)

	transcript, err := iv.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "followup_question") {
		t.Fatalf("expected follow-up failure, got %v", err)
	}
	if transcript.Status != StatusFailed {
		t.Fatalf("expected failed status, got %q", transcript.Status)
	}
	if len(transcript.Turns) != 2 || transcript.Verdict != nil {
		t.Fatalf("expected question and answer only, got %+v", transcript)
	}
}

func TestRunUnstructuredVerdict(t *testing.T) {
	chat := &fakeChat{judgment: "I would hire them, strong Go background."}
	console := &scriptedConsole{answers: []string{"answer"}}

	iv := newTestInterviewer(t, Config{MaxQuestions: 1}, chat, console)

	transcript, err := iv.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transcript.Verdict == nil || transcript.Verdict.Structured {
		t.Fatalf("expected unstructured verdict, got %+v", transcript.Verdict)
	}
	if transcript.Verdict.Summary != "I would hire them, strong Go background." {
		t.Fatalf("expected raw reply as summary, got %q", transcript.Verdict.Summary)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	iv := newTestInterviewer(t, Config{MaxQuestions: 1}, &fakeChat{}, &scriptedConsole{})

	transcript, err := iv.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if transcript.Status != StatusEnded {
		t.Fatalf("expected ended status, got %q", transcript.Status)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "missing role", cfg: Config{Resume: "x", MaxQuestions: 1}, want: "role"},
		{name: "blank resume", cfg: Config{Role: "SRE", Resume: "  ", MaxQuestions: 1}, want: "resume"},
		{name: "zero questions", cfg: Config{Role: "SRE", Resume: "x"}, want: "max questions"},
		{name: "negative follow-ups", cfg: Config{Role: "SRE", Resume: "x", MaxQuestions: 1, MaxFollowups: -1}, want: "follow-ups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := Config{Role: "SRE", Resume: "x", MaxQuestions: 1}

	if _, err := New(cfg, nil, &scriptedConsole{}, nil); err == nil {
		t.Fatal("expected error without chat client")
	}
	if _, err := New(cfg, &fakeChat{}, nil, nil); err == nil {
		t.Fatal("expected error without console")
	}
}
