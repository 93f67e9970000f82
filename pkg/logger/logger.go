package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"bot-atencion-clientes"`
}

var DefaultConfig = &Config{
	Service: "bot-atencion-clientes",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global zerolog logger.
func Init(opts ...Config) {
	InitWriter(os.Stdout, opts...)
}

// InitWriter is Init with an explicit sink; pretty output ignores w.
func InitWriter(w io.Writer, opts ...Config) {
	conf := safe(opts...)

	var base zerolog.Logger
	if conf.PrettyFormat {
		base = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		base = zerolog.New(w)
	}

	ctx := base.With().Timestamp()
	if svc := strings.TrimSpace(conf.Service); svc != "" {
		ctx = ctx.Str("service", svc)
	}
	logger := ctx.Logger()

	if conf.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}
