package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joelanford/axscan/utils/findings"
	"github.com/joelanford/axscan/utils/scanner"
)

const envPrefix = "AXSCAN"

type Opts struct {
	KeywordsFile  string
	HitContext    int
	HitsOnly      bool
	SizeLimit     int64
	ReadTimeout   time.Duration
	Parallelism   int
	ResultsFile   string
	ResultsFormat Format
	NoColor       bool
	LogLevel      string
}

// AddFlags registers every option on flags with its default value.
func AddFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Config file (default ./axscan.yaml or $HOME/.config/axscan/axscan.yaml)")
	flags.String("words", "", "YAML keywords file replacing the built-in ActiveX vocabulary")
	flags.Int("context", findings.DefaultContext, "Characters of context to capture on each side of a hit")
	flags.Bool("hits-only", false, "Only output results containing hits or errors")
	flags.Int64("size-limit", scanner.DefaultSizeLimit, "Largest file, in bytes, that will be scanned")
	flags.Duration("read-timeout", scanner.DefaultReadTimeout, "Time allowed to read each file (0 disables)")
	flags.Int("parallelism", 1, "Number of files to read and scan at once")
	flags.String("output.file", "-", "Results output file (\"-\" for stdout)")
	flags.String("output.format", string(FormatText), "Results output format (text, json, yaml)")
	flags.Bool("no-color", false, "Disable colored text output")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
}

// NewConfig layers defaults, an optional config file, AXSCAN_* environment
// variables and explicitly set flags, in increasing precedence.
func NewConfig(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "error binding flags")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", configFile)
		}
		return v, nil
	}

	v.SetConfigName("axscan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "axscan"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}
	return v, nil
}

func LoadOpts(v *viper.Viper) (*Opts, error) {
	opts := &Opts{
		KeywordsFile:  v.GetString("words"),
		HitContext:    v.GetInt("context"),
		HitsOnly:      v.GetBool("hits-only"),
		SizeLimit:     v.GetInt64("size-limit"),
		ReadTimeout:   v.GetDuration("read-timeout"),
		Parallelism:   v.GetInt("parallelism"),
		ResultsFile:   v.GetString("output.file"),
		ResultsFormat: Format(strings.ToLower(v.GetString("output.format"))),
		NoColor:       v.GetBool("no-color"),
		LogLevel:      v.GetString("log-level"),
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Opts) Validate() error {
	if o.HitContext < 0 {
		return errors.New("context must be >= 0")
	}
	if o.SizeLimit < 0 {
		return errors.New("size limit must be >= 0")
	}
	if o.ReadTimeout < 0 {
		return errors.New("read timeout must be >= 0")
	}
	if o.Parallelism < 1 {
		return errors.New("parallelism must be > 0")
	}
	if o.ResultsFile == "" {
		return errors.New("output file must be defined")
	}
	if _, err := ParseFormat(string(o.ResultsFormat)); err != nil {
		return err
	}
	if _, err := parseLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

func (o *Opts) ScannerOptions(logger *slog.Logger) []scanner.Option {
	return []scanner.Option{
		scanner.HitContext(o.HitContext),
		scanner.SizeLimit(o.SizeLimit),
		scanner.ReadTimeout(o.ReadTimeout),
		scanner.Parallelism(o.Parallelism),
		scanner.Logger(logger),
	}
}

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, errors.Errorf("invalid log level %q", level)
	}
	return l, nil
}
