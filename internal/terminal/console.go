// Package terminal implements the interview console on a terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"

	"github.com/smithers-cli/smithers/internal/interview"
)

const answerLabel = "Answer"

// Reader reads one answer from the candidate.
type Reader interface {
	ReadLine(ctx context.Context) (string, error)
}

type styles struct {
	label     lipgloss.Style
	followup  lipgloss.Style
	verdict   lipgloss.Style
	positive  lipgloss.Style
	negative  lipgloss.Style
	heading   lipgloss.Style
	secondary lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		followup:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("141")),
		verdict:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1),
		positive:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		negative:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		heading:   r.NewStyle().Bold(true),
		secondary: r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Console prints interviewer turns and reads the candidate's answers.
type Console struct {
	out    io.Writer
	reader Reader
	styles styles

	// label waits for the first chunk of an interviewer turn; started is set
	// once it has been printed.
	label   string
	started bool
}

// New creates a console writing to out and reading answers from reader.
func New(out io.Writer, reader Reader) *Console {
	return &Console{
		out:    out,
		reader: reader,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// BeginQuestion prepares the interviewer label. It is printed together with
// the first chunk, so a failed model call leaves no empty header behind.
func (c *Console) BeginQuestion(kind interview.Kind, question int) {
	c.label = c.styles.label.Render(fmt.Sprintf("Interviewer (question %d):", question))
	if kind == interview.KindFollowup {
		c.label = c.styles.followup.Render(fmt.Sprintf("Interviewer (follow-up on %d):", question))
	}
	c.started = false
}

// WriteChunk prints a streamed fragment as is.
func (c *Console) WriteChunk(chunk string) {
	if !c.started {
		fmt.Fprintf(c.out, "\n%s\n", c.label)
		c.started = true
	}
	fmt.Fprint(c.out, chunk)
}

// EndQuestion terminates the streamed line, if anything was streamed.
func (c *Console) EndQuestion() {
	if c.started {
		fmt.Fprintln(c.out)
	}
	c.started = false
}

// ReadAnswer reads the next non-empty answer.
func (c *Console) ReadAnswer(ctx context.Context) (string, error) {
	for {
		answer, err := c.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
	}
}

// ShowVerdict prints the final recommendation in a bordered block.
func (c *Console) ShowVerdict(v *interview.Verdict) {
	if v == nil {
		return
	}

	var b strings.Builder

	if v.Structured {
		decision := c.styles.negative.Render("Not recommended")
		if v.Recommend {
			decision = c.styles.positive.Render("Recommended")
		}
		fmt.Fprintf(&b, "%s  %s\n", decision, c.styles.secondary.Render(fmt.Sprintf("score %.1f/10", v.Score)))
		writeList(&b, c.styles.heading.Render("Strengths"), v.Strengths)
		writeList(&b, c.styles.heading.Render("Concerns"), v.Concerns)
	}

	if v.Summary != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(v.Summary)
	}

	fmt.Fprintf(c.out, "\n%s\n%s\n", c.styles.label.Render("Verdict:"), c.styles.verdict.Render(strings.TrimRight(b.String(), "\n")))
}

// Notice prints an informational line, such as where the transcript was saved.
func (c *Console) Notice(format string, args ...any) {
	fmt.Fprintln(c.out, c.styles.secondary.Render(fmt.Sprintf(format, args...)))
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// LineReader reads answers line by line, for pipes and dumb terminals.
type LineReader struct {
	scanner *bufio.Scanner
	prompt  io.Writer

	once  sync.Once
	lines chan string
	err   error
}

// NewLineReader reads from r. When prompt is not nil an "Answer: " prefix is
// written there before each read.
func NewLineReader(r io.Reader, prompt io.Writer) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineReader{scanner: scanner, prompt: prompt, lines: make(chan string)}
}

// scan runs until end of input; err is set before lines is closed.
func (l *LineReader) scan() {
	defer close(l.lines)
	for l.scanner.Scan() {
		l.lines <- l.scanner.Text()
	}
	l.err = l.scanner.Err()
}

// ReadLine returns interview.ErrEnded at end of input. It stops waiting as
// soon as ctx is done.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if l.prompt != nil {
		fmt.Fprintf(l.prompt, "%s: ", answerLabel)
	}

	l.once.Do(func() { go l.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-l.lines:
		if !ok {
			if l.err != nil {
				return "", fmt.Errorf("read answer: %w", l.err)
			}
			return "", interview.ErrEnded
		}
		return line, nil
	}
}

// PromptReader reads answers with an interactive promptui prompt.
type PromptReader struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
}

// NewPromptReader uses the process stdin and stdout.
func NewPromptReader() *PromptReader {
	return &PromptReader{stdin: os.Stdin, stdout: os.Stdout}
}

// ReadLine maps Ctrl-D and Ctrl-C to interview.ErrEnded. It returns
// ctx.Err() as soon as ctx is done, even while the prompt waits for input.
func (p *PromptReader) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prompt := promptui.Prompt{
		Label:    answerLabel,
		Validate: validateAnswer,
		Stdin:    p.stdin,
		Stdout:   p.stdout,
	}

	type result struct {
		answer string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		answer, err := prompt.Run()
		done <- result{answer: answer, err: err}
	}()

	var answer string
	var err error
	select {
	case <-ctx.Done():
		// readline cannot be interrupted; the pending read is abandoned.
		return "", ctx.Err()
	case r := <-done:
		answer, err = r.answer, r.err
	}

	if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return "", interview.ErrEnded
	}
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}

	return answer, nil
}

func validateAnswer(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("answer must not be empty")
	}
	return nil
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
