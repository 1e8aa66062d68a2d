// Package ollama talks to a local Ollama server through its HTTP API.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/smithers-cli/smithers/internal/ai"
	"github.com/smithers-cli/smithers/internal/logger"
	"github.com/smithers-cli/smithers/internal/utils"
)

const (
	// Provider is the name used in logs and stored transcripts.
	Provider = "ollama"

	DefaultModel        = "llama3.1"
	defaultMaxLogLength = 200
	defaultTag          = ":latest"
)

// Options configures the client.
type Options struct {
	// Host is the server base URL. Empty means OLLAMA_HOST or the Ollama default.
	Host  string
	Model string
	// Temperature is forwarded when set.
	Temperature *float64
	// Extra holds raw Ollama model options such as num_ctx.
	Extra map[string]any
	// Timeout bounds a single chat call. Zero disables it.
	Timeout      time.Duration
	MaxLogLength int
}

// Client implements ai.Chatter against an Ollama server.
type Client struct {
	api       *api.Client
	model     string
	options   map[string]any
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

// New creates a client. It does not contact the server; use Ping for that.
func New(opts Options, log *zap.Logger) (*Client, error) {
	client, err := newAPIClient(opts.Host)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	options := make(map[string]any, len(opts.Extra)+1)
	for k, v := range opts.Extra {
		options[k] = v
	}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Client{
		api:       client,
		model:     model,
		options:   options,
		timeout:   opts.Timeout,
		maxLogLen: maxLogLen,
		logger:    logger.WithModel(log, Provider, model),
	}, nil
}

func newAPIClient(host string) (*api.Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client from environment: %w", err)
		}
		return client, nil
	}

	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}

	// No client-level timeout: replies are streamed and bounded by the context.
	return api.NewClient(base, &http.Client{}), nil
}

// Model returns the model name used for chat requests.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Ping verifies the server answers and serves the configured model.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return classify(err)
	}

	list, err := c.api.List(ctx)
	if err != nil {
		return classify(err)
	}

	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.Name)
		if sameModel(m.Name, c.model) || sameModel(m.Model, c.model) {
			c.logger.Debug("model endpoint ready", zap.String("matched", m.Name))
			return nil
		}
	}

	c.logger.Debug("model not listed by endpoint", zap.Strings("available_models", names))

	return fmt.Errorf("%w: %s (run `ollama pull %s`)", ai.ErrModelMissing, c.model, c.model)
}

// Chat sends the request and returns the full reply. With req.Stream set,
// fragments are handed to fn as soon as they arrive.
func (c *Client) Chat(ctx context.Context, req ai.Request, fn ai.ChunkFunc) (string, error) {
	if len(req.Messages) == 0 {
		return "", errors.New("chat request has no messages")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stream := req.Stream
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: toAPIMessages(req.Messages),
		Stream:   &stream,
		Options:  c.options,
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	last := req.Messages[len(req.Messages)-1].Content
	c.logger.Debug("ollama chat request",
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", req.Stream),
		zap.Bool("json", req.JSON),
		zap.Int("prompt_length", utf8.RuneCountInString(last)),
		zap.String("prompt_preview", utils.Preview(last, c.maxLogLen)),
	)

	var builder strings.Builder
	err := c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chunk := resp.Message.Content
		if chunk != "" {
			builder.WriteString(chunk)
			if fn != nil {
				if err := fn(chunk); err != nil {
					return err
				}
			}
		}

		if resp.Done {
			c.logger.Debug("ollama chat done",
				zap.String("done_reason", resp.DoneReason),
				zap.Int("prompt_eval_count", resp.PromptEvalCount),
				zap.Int("eval_count", resp.EvalCount),
				zap.Duration("total_duration", resp.TotalDuration),
			)
		}
		return nil
	})
	if err != nil {
		return "", classify(err)
	}

	reply := strings.TrimSpace(builder.String())
	if reply == "" {
		return "", errors.New("ollama returned an empty reply")
	}

	c.logger.Debug("ollama chat response",
		zap.Int("response_length", utf8.RuneCountInString(reply)),
		zap.String("response_preview", utils.Preview(reply, c.maxLogLen)),
	)

	return reply, nil
}

func toAPIMessages(messages []ai.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// classify maps transport failures onto ai.ErrUnreachable and keeps the
// server's own message for HTTP status errors.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := strings.TrimSpace(statusErr.ErrorMessage)
		if msg == "" {
			msg = statusErr.Status
		}
		if statusErr.StatusCode == http.StatusNotFound && strings.Contains(msg, "not found") {
			return fmt.Errorf("%w: %s", ai.ErrModelMissing, msg)
		}
		return fmt.Errorf("ollama returned %d: %s", statusErr.StatusCode, msg)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ai.ErrUnreachable, err)
	}

	// Streamed error bodies arrive as plain errors carrying the server message.
	if msg := err.Error(); strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %s", ai.ErrModelMissing, msg)
	}

	return fmt.Errorf("ollama chat: %w", err)
}

// sameModel treats an untagged name as the :latest tag, the way Ollama does.
func sameModel(listed, wanted string) bool {
	if listed == "" {
		return false
	}
	return withTag(listed) == withTag(wanted)
}

func withTag(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, ":") {
		name += defaultTag
	}
	return name
}
