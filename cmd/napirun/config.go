package main

import (
	"github.com/davidmdm/conf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds defaults read from the environment. Flags override them.
type Config struct {
	MemoryPages int
	CacheDir    string
	LogLevel    string
}

func LoadConfig(lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config

	parser := conf.MakeParser(lookup)

	conf.Var(parser, &cfg.MemoryPages, "NAPIRUN_MEMORY_PAGES")
	conf.Var(parser, &cfg.CacheDir, "NAPIRUN_CACHE_DIR")
	conf.Var(parser, &cfg.LogLevel, "NAPIRUN_LOG_LEVEL", conf.Default("warn"))

	err := parser.Parse()
	return &cfg, err
}

// newLogger builds a console logger at level. "off" disables logging.
func newLogger(level string) (*zap.Logger, error) {
	if level == "off" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
