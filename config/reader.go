package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
)

// Read reads a config from the given file. ${VAR} references are replaced from the environment
// before parsing.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	cfg := Config{
		ConfigFilePath: originalPath,
	}
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	logger.Debugw("read config",
		"path", originalPath, "motors", cfg.Motors.Model, "movementSensor", cfg.MovementSensor.Model)
	return &cfg, nil
}
