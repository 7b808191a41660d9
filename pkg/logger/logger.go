// Package logger holds the process-wide zerolog logger.
//
// Call Init once from main; packages that are not handed a logger explicitly
// use Get or Component.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger built by Init.
type Options struct {
	// Level names the minimum level ("trace" through "panic"; "warning" is
	// accepted for "warn"). Unknown or empty values mean info.
	Level string
	// Pretty switches to zerolog's console writer for local development.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service and Env are stamped on every event when non-empty.
	Service string
	Env     string
}

var (
	current atomic.Pointer[zerolog.Logger]
	once    sync.Once
)

// Init builds the process logger from opts and returns it. Only the first
// call builds anything; later calls return the existing logger.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		l := build(opts)
		current.Store(&l)
	})
	return *current.Load()
}

func build(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	fields := zerolog.New(out).Level(lvl).With().Timestamp().Caller()
	if opts.Service != "" {
		fields = fields.Str("service", opts.Service)
	}
	if opts.Env != "" {
		fields = fields.Str("env", opts.Env)
	}
	return fields.Logger()
}

// Get returns the logger built by Init. It panics when Init has not run.
func Get() zerolog.Logger {
	l := current.Load()
	if l == nil {
		panic("logger: Get called before Init")
	}
	return *l
}

// Component returns a child of the process logger tagged with name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset forgets the current logger so the next Init rebuilds it. Tests only.
func Reset() {
	once = sync.Once{}
	current.Store(nil)
}

// ParseLevel maps a configured level name to a zerolog.Level, falling back to
// info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel || lvl == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return lvl
}
