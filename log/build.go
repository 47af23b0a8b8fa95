package log

import (
	"fmt"

	"dynosaur/config"

	"go.uber.org/zap"
)

// Bootstrap returns the logger used before the config file is read.
func Bootstrap(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Build creates the long-lived logger from the log section of the config.
func Build(debug bool, c config.Log, node string) (*zap.Logger, error) {
	var logOption zap.Config
	if debug {
		logOption = zap.NewDevelopmentConfig()
	} else {
		logOption = zap.NewProductionConfig()
	}

	if c.Level != nil {
		logOption.Level.SetLevel(*c.Level)
	}

	if c.Encoding != nil {
		logOption.Encoding = *c.Encoding
	}

	if c.InfoPath != nil {
		logOption.OutputPaths = *c.InfoPath
	}

	if c.ErrorPath != nil {
		logOption.ErrorOutputPaths = *c.ErrorPath
	}

	if node != "" {
		logOption.InitialFields = map[string]interface{}{
			"node": node,
		}
	}

	logger, err := logOption.Build()
	if err != nil {
		return nil, fmt.Errorf("cannot build logger: %w", err)
	}

	return logger, nil
}
