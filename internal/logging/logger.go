package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger creates a new structured logger at the given level
func NewLogger(serviceName, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	if level != "" {
		if err := config.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithRequestID returns a logger with request_id field
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// WithContractID returns a logger with contract_id field
func WithContractID(logger *zap.Logger, contractID string) *zap.Logger {
	return logger.With(zap.String("contract_id", contractID))
}
