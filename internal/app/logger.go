package app

import (
	"strings"

	"github.com/charlesng35/menuguard/pkg/logger"
)

// ConfigureLogging initialises the global logger, defaulting to info level json output.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(logger.Options{Level: level, Format: strings.TrimSpace(format)})
}
