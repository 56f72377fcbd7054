package core

import (
	"fmt"
	"strconv"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
)

// Environment keys read by LoadConfiguration
const (
	EnvFramesPerSecond = "KORU_FPS"
	EnvEventPollDelay  = "KORU_EVENT_POLL_DELAY"
	EnvLogLevel        = "KORU_LOG_LEVEL"
	EnvLogFormat       = "KORU_LOG_FORMAT"
	EnvMaterialArchive = "KORU_MATERIAL_ARCHIVE"
	EnvWorkers         = "KORU_WORKERS"
)

// LoadConfiguration loads the given env files, if any, and builds the
// configuration from the environment. Unset keys keep DefaultConfiguration.
func LoadConfiguration(files ...string) (Configuration, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Configuration{}, err
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration
	var err error
	if cfg.Time.FramesPerSecond, err = envInt(EnvFramesPerSecond, cfg.Time.FramesPerSecond); err != nil {
		return Configuration{}, err
	}
	if cfg.Time.EventPollDelay, err = envInt(EnvEventPollDelay, cfg.Time.EventPollDelay); err != nil {
		return Configuration{}, err
	}
	if cfg.Scene.Workers, err = envInt(EnvWorkers, cfg.Scene.Workers); err != nil {
		return Configuration{}, err
	}
	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = envy.Get(EnvLogFormat, cfg.Log.Format)
	cfg.Scene.MaterialArchive = envy.Get(EnvMaterialArchive, cfg.Scene.MaterialArchive)
	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := envy.Get(key, strconv.Itoa(fallback))
	num, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("core: %s: %q is not a number", key, raw)
	}
	if num < 0 {
		return 0, fmt.Errorf("core: %s: %d is negative", key, num)
	}
	return num, nil
}
