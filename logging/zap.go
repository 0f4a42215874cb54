package logging

import (
	"go.uber.org/zap"

	"bufftree"
)

// Zap wraps a zap.Logger to implement bufftree.Logger.
type Zap struct {
	logger *zap.Logger
}

// NewZap creates a bufftree.Logger from a zap.Logger.
func NewZap(logger *zap.Logger) bufftree.Logger {
	return &Zap{logger: logger}
}

func (z *Zap) Error(msg string, args ...any) { z.logger.Sugar().Errorw(msg, args...) }
func (z *Zap) Warn(msg string, args ...any)  { z.logger.Sugar().Warnw(msg, args...) }
func (z *Zap) Info(msg string, args ...any)  { z.logger.Sugar().Infow(msg, args...) }
