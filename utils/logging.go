package utils

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

func getLogger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "mmd",
		})
		logger.SetLevel(log.InfoLevel)
	})
	return logger
}

// Logger returns sub logger with component prefix, like "web" or "mmd"
func Logger(component string) *log.Logger {
	return getLogger().WithPrefix(component)
}

func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	getLogger().SetLevel(lvl)
	return nil
}
