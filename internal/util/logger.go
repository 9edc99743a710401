package util

import (
	"fmt"
	"io"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger sets the global log level and formatter. When file is
// non-empty, output is duplicated into a size-rotated log file.
func InitLogger(level, file string) error {
	parsed, err := CheckLogLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	log.SetFormatter(&nested.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		HideKeys:        false,
		FieldsOrder:     []string{"component"},
	})

	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
	return nil
}

// CheckLogLevel validates a level string from config or the command
// line.
func CheckLogLevel(level string) (log.Level, error) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q, valid levels are: trace, debug, info, warn, error", level)
	}
	return parsed, nil
}
