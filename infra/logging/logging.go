package logging

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/giovaniif/vending-machine/infra/loki"
	"github.com/giovaniif/vending-machine/infra/requestid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger on stdout, teeing into Loki when sink is set.
func New(serviceName string, sink *loki.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stdout), zap.InfoLevel),
	}
	if sink != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, zap.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).With(zap.String("service", serviceName))
}

// FromContext decorates logger with the request and trace ids found in ctx.
func FromContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if id := requestid.FromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// Middleware writes one access log line per request.
func Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		FromContext(c.Request.Context(), logger).Info("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
