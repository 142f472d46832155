// Package logging provides the structured logger shared by the
// attitude estimator's core packages.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

// Log is the process-wide structured logger, with caller info attached
// and human-readable console output.
var Log = logger.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
