package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrymomot/reviewkit/pkg/environment"
)

// Format is the record encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

func (f Format) valid() bool { return f == FormatJSON || f == FormatText }

// Config holds LOG_LEVEL and LOG_FORMAT. Both override the environment preset.
type Config struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

type config struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// Option configures New.
type Option func(*config)

// WithFormat panics for unknown formats so a bad setup fails at startup.
func WithFormat(f Format) Option {
	if !f.valid() {
		panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
	}
	return func(c *config) { c.format = f }
}

// WithTextFormatter is WithFormat(FormatText).
func WithTextFormatter() Option { return WithFormat(FormatText) }

// WithJSONFormatter is WithFormat(FormatJSON).
func WithJSONFormatter() Option { return WithFormat(FormatJSON) }

// WithOutput ignores nil writers.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// WithContextExtractors adds extractors that run for every record logged with a context.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		for _, ex := range extractors {
			if ex != nil {
				c.extractors = append(c.extractors, ex)
			}
		}
	}
}

// WithConfig applies the env overrides. Empty or unparsable values are ignored.
func WithConfig(cfg Config) Option {
	return func(c *config) {
		var l slog.Level
		if cfg.Level != "" && l.UnmarshalText([]byte(cfg.Level)) == nil {
			c.level = l
		}
		if f := Format(cfg.Format); f.valid() {
			c.format = f
		}
	}
}

type preset struct {
	level  slog.Level
	format Format
}

var presets = map[environment.Environment]preset{
	environment.Development: {slog.LevelDebug, FormatText},
	environment.Staging:     {slog.LevelInfo, FormatJSON},
	environment.Production:  {slog.LevelInfo, FormatJSON},
}

// WithEnvironment applies the preset of env and tags records with service
// and env. Unknown environments get the development preset.
func WithEnvironment(env, service string) Option {
	e := environment.Parse(env)
	p := presets[e]
	return func(c *config) {
		if service == "" {
			return
		}
		c.level, c.format = p.level, p.format
		c.attrs = append(c.attrs, slog.String("service", service), slog.String("env", string(e)))
	}
}

// WithDevelopment configures development defaults: debug level, text output.
func WithDevelopment(service string) Option {
	return WithEnvironment(string(environment.Development), service)
}

// WithProduction configures production defaults: info level, JSON output.
func WithProduction(service string) Option {
	return WithEnvironment(string(environment.Production), service)
}

// SetAsDefault installs l as the slog default logger.
func SetAsDefault(l *slog.Logger) { slog.SetDefault(l) }

// New builds a logger writing JSON at info level to stdout unless options
// say otherwise. Attributes stored with ContextWithAttrs are always injected.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:      slog.LevelInfo,
		format:     FormatJSON,
		output:     os.Stdout,
		extractors: []ContextExtractor{attrsFromContext},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ho := &slog.HandlerOptions{Level: cfg.level}
	var h slog.Handler = slog.NewJSONHandler(cfg.output, ho)
	if cfg.format == FormatText {
		h = slog.NewTextHandler(cfg.output, ho)
	}
	if len(cfg.attrs) > 0 {
		h = h.WithAttrs(cfg.attrs)
	}
	return slog.New(NewLogHandlerDecorator(h, cfg.extractors...))
}
