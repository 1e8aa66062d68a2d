package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smithers-cli/smithers/internal/ai/ollama"
	"github.com/smithers-cli/smithers/internal/interview"
	"github.com/smithers-cli/smithers/internal/logger"
	"github.com/smithers-cli/smithers/internal/resume"
	"github.com/smithers-cli/smithers/internal/store"
	"github.com/smithers-cli/smithers/internal/terminal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// runInterview is the main command for the cli.
func runInterview(cmd *cobra.Command, v *viper.Viper, args []string) error {
	config, err := getConfig(v)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		config.Resume = args[0]
	}

	if err := config.validate(); err != nil {
		return err
	}

	log, err := logger.New(v.GetBool("json"), v.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := resume.Load(ctx, config.Resume)
	if err != nil {
		return fmt.Errorf("loading resume: %w", err)
	}
	log.Debug("resume loaded", zap.String("path", doc.Path), zap.String("format", string(doc.Format)), zap.Int("chars", len(doc.Text)))

	client, err := ollama.New(ollama.Options{
		Host:         config.Ollama.Host,
		Model:        config.Ollama.Model,
		Temperature:  config.Ollama.Temperature,
		Extra:        config.Ollama.Options,
		Timeout:      config.Ollama.Timeout,
		MaxLogLength: config.Ollama.MaxLogLength,
	}, log)
	if err != nil {
		return fmt.Errorf("creating ollama client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("checking model endpoint: %w", err)
	}

	out := cmd.OutOrStdout()
	console := terminal.New(out, newReader(cmd, config.Plain))

	console.Notice("Applying for role: %s", config.Role)
	console.Notice("Resume: %s", doc.Path)

	iv, err := interview.New(interview.Config{
		Role:         config.Role,
		Resume:       doc.Text,
		ResumePath:   doc.Path,
		Model:        client.Model(),
		MaxQuestions: config.MaxQuestions,
		MaxFollowups: config.MaxFollowups,
	}, client, console, log)
	if err != nil {
		return err
	}

	transcript, runErr := iv.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		console.Notice("Interview interrupted.")
		runErr = nil
	}

	if config.History.Enabled && transcript != nil {
		// The transcript is kept even if the session was interrupted.
		if err := saveTranscript(context.WithoutCancel(ctx), config.History.Path, transcript); err != nil {
			if runErr != nil {
				return errors.Join(runErr, err)
			}
			return err
		}
		console.Notice("Session saved as %s", transcript.ID)
	}

	return runErr
}

func newReader(cmd *cobra.Command, plain bool) terminal.Reader {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !plain && terminal.IsInteractive(f) {
		return terminal.NewPromptReader()
	}
	return terminal.NewLineReader(in, cmd.OutOrStdout())
}

func saveTranscript(ctx context.Context, path string, t *interview.Transcript) error {
	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()

	if err := db.Save(ctx, t); err != nil {
		return fmt.Errorf("saving session %s: %w", t.ID, err)
	}
	return nil
}
