package logsvc

import (
	"go.uber.org/zap"

	"github.com/trezcool/darasa/core"
)

// ZapLogger only writes structured lines; used by the CLI and the HLS server.
type ZapLogger struct {
	zap *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

func NewZapLogger(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zap: zl.Sugar()}
}

// NewNopLogger discards everything.
func NewNopLogger() *ZapLogger {
	return NewZapLogger(zap.NewNop())
}

func (l ZapLogger) Debug(msg string, args ...interface{}) { l.zap.Debugw(msg, fields(args)...) }
func (l ZapLogger) Info(msg string, args ...interface{})  { l.zap.Infow(msg, fields(args)...) }
func (l ZapLogger) Warn(msg string, args ...interface{})  { l.zap.Warnw(msg, fields(args)...) }
func (l ZapLogger) Error(msg string, args ...interface{}) { l.zap.Errorw(msg, fields(args)...) }
func (l ZapLogger) Fatal(msg string, args ...interface{}) { l.zap.Fatalw(msg, fields(args)...) }
func (l ZapLogger) Sync()                                 { _ = l.zap.Sync() }
