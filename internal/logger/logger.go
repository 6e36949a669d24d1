package logger

import (
	"io"
	"os"
	"strings"

	"ec-dashboard/internal/config"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Raw is the process logger before error interception is installed. Only
// the telemetry pipeline logs through it directly.
type Raw struct {
	zerolog.Logger
	// Out is the writer Logger was built on.
	Out io.Writer
}

// Installer attaches process-wide interception to a logger writing to out.
type Installer interface {
	Install(base zerolog.Logger, out io.Writer) zerolog.Logger
}

// Bootstrap is used until configuration is loaded.
func Bootstrap() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.DebugLevel)
}

func NewRaw(cfg *config.Config) Raw {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var w io.Writer = os.Stdout
	if strings.TrimSpace(cfg.LogFile) != "" {
		w = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	logger := zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()

	return Raw{Logger: logger.Level(ParseLevel(cfg.LogLevel)), Out: w}
}

func New(raw Raw, installer Installer) zerolog.Logger {
	return installer.Install(raw.Logger, raw.Out)
}

func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
