package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogger - JSON di production, text selain itu. Dipanggil setelah env
// dibaca, untuk logger yang sudah dipegang command.
func ConfigureLogger(logger *log.Logger, cfg *Config) {
	logger.SetOutput(os.Stdout)

	if cfg.IsProduction() {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("log_level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	logger.SetLevel(level)
}
