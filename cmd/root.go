package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smithers-cli/smithers/internal/ai/ollama"
	"github.com/smithers-cli/smithers/internal/interview"
)

const (
	app       = "smithers"
	envPrefix = "SMITHERS"

	defaultHistoryPath = "smithers.db"
)

type Config struct {
	Role         string        `mapstructure:"role"`
	Resume       string        `mapstructure:"resume"`
	MaxQuestions int           `mapstructure:"max-questions"`
	MaxFollowups int           `mapstructure:"max-followups"`
	Plain        bool          `mapstructure:"plain"`
	Ollama       OllamaConfig  `mapstructure:"ollama"`
	History      HistoryConfig `mapstructure:"history"`
}

type OllamaConfig struct {
	Host         string         `mapstructure:"host"`
	Model        string         `mapstructure:"model"`
	Temperature  *float64       `mapstructure:"temperature"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	Options      map[string]any `mapstructure:"options"`
	MaxLogLength int            `mapstructure:"max-log-length"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// validate reports input errors before anything touches the model endpoint.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Role) == "" {
		return errors.New("role is required: pass --role or set role in smithers.yaml")
	}
	if strings.TrimSpace(c.Resume) == "" {
		return fmt.Errorf("resume path is required: %s RESUME_PATH --role=ROLE", app)
	}
	if c.MaxQuestions < 1 {
		return fmt.Errorf("--max-questions must be at least 1, got %d", c.MaxQuestions)
	}
	if c.MaxFollowups < 0 {
		return fmt.Errorf("--max-followups must not be negative, got %d", c.MaxFollowups)
	}
	return nil
}

// Execute executes the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree around its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   app + " [RESUME_PATH] --role=ROLE",
		Short: "smithers rehearses a job interview for a role against your resume using a local Ollama model",
		Args:  cobra.MaximumNArgs(1),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterview(cmd, v, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&cfgFile, "config", "", "a config file (default is smithers.yaml in current directory)")
	pflags.BoolP("debug", "d", false, "verbose/debug output")
	pflags.BoolP("json", "j", false, "json format for logging")
	pflags.String("history-path", defaultHistoryPath, "sqlite database with saved interviews")

	flags := rootCmd.Flags()
	flags.StringP("role", "r", "", "role you are interviewing for")
	flags.String("resume", "", "path to your resume (pdf, docx, markdown or text)")
	flags.IntP("max-questions", "q", interview.DefaultMaxQuestions, "number of resume entries to ask about")
	flags.IntP("max-followups", "f", interview.DefaultMaxFollowups, "follow-up questions per resume entry")
	flags.StringP("model", "m", ollama.DefaultModel, "ollama model to interview with")
	flags.String("host", "", "ollama server url (default is OLLAMA_HOST or http://127.0.0.1:11434)")
	flags.Bool("save", false, "save the transcript to the history database")
	flags.Bool("plain", false, "read answers line by line instead of an interactive prompt")

	bindFlags(v, map[string]string{
		"debug":           "debug",
		"json":            "json",
		"history.path":    "history-path",
		"role":            "role",
		"resume":          "resume",
		"max-questions":   "max-questions",
		"max-followups":   "max-followups",
		"ollama.model":    "model",
		"ollama.host":     "host",
		"history.enabled": "save",
		"plain":           "plain",
	}, rootCmd)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Keys without a flag have to be bound explicitly to be seen by Unmarshal.
	for _, key := range []string{"ollama.temperature", "ollama.timeout", "ollama.max-log-length"} {
		_ = v.BindEnv(key)
	}

	rootCmd.AddCommand(newHistoryCmd(v), newVersionCmd())

	return rootCmd
}

func bindFlags(v *viper.Viper, keys map[string]string, cmd *cobra.Command) {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("binding unknown flag %q", name))
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("binding flag %q: %v", name, err))
		}
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The default config file is optional, an explicit one is not.
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	return nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if strings.TrimSpace(config.History.Path) == "" {
		config.History.Path = defaultHistoryPath
	}

	return &config, nil
}
