package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel      = "llama3.2:latest"
	DefaultProvider   = "ollama"
	DefaultRetries    = -1
	DefaultConfigFile = ".mend.yaml"
)

// Config holds all the command-line flag values.
type Config struct {
	Script string
	Args   []string

	Revert      bool
	Confirm     bool
	Model       string
	Provider    string
	Retries     int
	PromptFile  string
	MaxCycles   int
	Timeout     time.Duration
	ConfigFile  string
	NoAnimation bool
	Verbose     bool
	LogFile     string
	CopyDiff    bool

	OllamaHost    string
	OpenAIKey     string
	OpenAIBaseURL string

	// Interpreters maps a script extension to the command that runs it.
	Interpreters map[string][]string
}

// fileConfig is the optional YAML file.
type fileConfig struct {
	Model        string              `yaml:"model"`
	Provider     string              `yaml:"provider"`
	Retries      *int                `yaml:"retries"`
	Confirm      *bool               `yaml:"confirm"`
	PromptFile   string              `yaml:"prompt_file"`
	MaxCycles    *int                `yaml:"max_cycles"`
	Timeout      string              `yaml:"timeout"`
	OllamaHost   string              `yaml:"ollama_host"`
	Interpreters map[string][]string `yaml:"interpreters"`
}

// ParseArgs defines and parses command-line flags. Values not given as
// flags come from the environment (including a .env file), then from the
// YAML config file, then from the built-in defaults.
func ParseArgs(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	cfg := &Config{}
	flags := newFlagSet(cfg)

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return nil, errors.New("error: missing script to run")
	}
	cfg.Script = rest[0]
	cfg.Args = rest[1:]

	fileCfg, err := loadFileConfig(cfg.ConfigFile, flags.Changed("config"))
	if err != nil {
		return nil, err
	}
	if err := applyDefaults(cfg, flags, fileCfg); err != nil {
		return nil, err
	}

	if cfg.Retries < -1 {
		return nil, fmt.Errorf("error: --retries must be -1 or greater, got %d", cfg.Retries)
	}
	if cfg.MaxCycles < 0 {
		return nil, fmt.Errorf("error: --max-cycles must not be negative, got %d", cfg.MaxCycles)
	}
	return cfg, nil
}

// newFlagSet binds every flag to cfg.
func newFlagSet(cfg *Config) *pflag.FlagSet {
	flags := pflag.NewFlagSet("mend", pflag.ContinueOnError)
	// Everything after the script belongs to the script.
	flags.SetInterspersed(false)

	flags.BoolVarP(&cfg.Revert, "revert", "r", false, "Restore the script from its backup and exit.")
	flags.BoolVarP(&cfg.Confirm, "confirm", "c", false, "Show each patch and ask before applying it.")
	flags.StringVarP(&cfg.Model, "model", "m", DefaultModel, "Model used to suggest fixes.")
	flags.StringVarP(&cfg.Provider, "provider", "p", DefaultProvider, "Model backend: 'ollama' or 'openai'.")
	flags.IntVar(&cfg.Retries, "retries", DefaultRetries, "Total model requests per fix, the first one included, before giving up on replies that are not valid JSON (-1 = unlimited, 0 = never ask).")
	flags.StringVar(&cfg.PromptFile, "prompt", "", "Read the system prompt from this file instead of the built-in one.")
	flags.IntVar(&cfg.MaxCycles, "max-cycles", 0, "Stop after this many fix cycles (0 = no limit).")
	flags.DurationVar(&cfg.Timeout, "timeout", 0, "Kill the script if a run takes longer than this (e.g. 30s).")
	flags.StringVar(&cfg.ConfigFile, "config", "", "YAML config file (default: "+DefaultConfigFile+" if present).")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the spinner while waiting for the model.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print debug logs.")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Write debug logs to this file.")
	flags.BoolVar(&cfg.CopyDiff, "copy-diff", false, "Copy each applied diff to the clipboard.")

	flags.Usage = func() {
		fmt.Println("Usage: mend [flags] <script> [args...]")
		fmt.Println("\nRun a script and, while it fails, ask a language model for a patch and apply it.")
		fmt.Println("\nExample: mend -c buggy_script.py subtract 20 3")
		fmt.Println("\nFlags:")
		flags.PrintDefaults()
	}
	return flags
}

func loadFileConfig(path string, explicit bool) (*fileConfig, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	fc := &fileConfig{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc, nil
}

// applyDefaults fills every value that was not set by a flag.
func applyDefaults(cfg *Config, flags *pflag.FlagSet, fc *fileConfig) error {
	unset := func(name string) bool { return !flags.Changed(name) }

	if unset("model") {
		cfg.Model = firstNonEmpty(os.Getenv("MEND_MODEL"), fc.Model, DefaultModel)
	}
	if unset("provider") {
		cfg.Provider = firstNonEmpty(os.Getenv("MEND_PROVIDER"), fc.Provider, DefaultProvider)
	}
	if unset("prompt") {
		cfg.PromptFile = firstNonEmpty(os.Getenv("MEND_PROMPT_FILE"), fc.PromptFile)
	}
	if unset("retries") {
		if v := os.Getenv("VALIDATE_JSON_RETRY"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid VALIDATE_JSON_RETRY %q: %w", v, err)
			}
			cfg.Retries = n
		} else if fc.Retries != nil {
			cfg.Retries = *fc.Retries
		}
	}
	if unset("confirm") && fc.Confirm != nil {
		cfg.Confirm = *fc.Confirm
	}
	if unset("max-cycles") && fc.MaxCycles != nil {
		cfg.MaxCycles = *fc.MaxCycles
	}
	if unset("timeout") && fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q in config file: %w", fc.Timeout, err)
		}
		cfg.Timeout = d
	}

	cfg.OllamaHost = firstNonEmpty(os.Getenv("OLLAMA_HOST"), fc.OllamaHost)
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.Interpreters = fc.Interpreters
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
