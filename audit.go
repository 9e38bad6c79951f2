package marketAuth

import (
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
)

// NewZapSink returns a sink that logs each event under the "audit" logger name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
