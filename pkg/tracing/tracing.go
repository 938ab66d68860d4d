// Package tracing 建立把 span 寫進 zap log 的 OpenTelemetry TracerProvider
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// LogProcessor 在 span 結束時以 debug 等級記錄名稱、耗時、屬性與狀態
type LogProcessor struct {
	logger *zap.Logger
}

func NewLogProcessor(logger *zap.Logger) *LogProcessor {
	return &LogProcessor{logger: logger}
}

func (p *LogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("span", s.Name()),
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.Duration("elapsed", s.EndTime().Sub(s.StartTime())),
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	if st := s.Status(); st.Code == codes.Error {
		fields = append(fields, zap.String("status", st.Description))
	}
	p.logger.Debug("span ended", fields...)
}

func (p *LogProcessor) Shutdown(context.Context) error { return nil }

func (p *LogProcessor) ForceFlush(context.Context) error { return nil }

// NewProvider 建立 TracerProvider
//
// 參數:
//
//	logger: *zap.Logger - span 輸出目標
//	sampleRate: float64 - 取樣比例 0~1，父 span 已取樣時沿用
//
// 回傳值:
//
//	*sdktrace.TracerProvider: 結束時呼叫 Shutdown
func NewProvider(logger *zap.Logger, sampleRate float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
		sdktrace.WithSpanProcessor(NewLogProcessor(logger)),
	)
}

var _ sdktrace.SpanProcessor = (*LogProcessor)(nil)
