package status

import "go.uber.org/zap"

// LogSink logs every status event at Info level. It is always attached
// by internal/core, the way the teacher repo threads a *zap.Logger
// through every subsystem rather than leaving any of them silent.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(e Event) {
	fields := []zap.Field{
		zap.String("event", e.Kind.String()),
		zap.String("host", e.Tag.Host),
		zap.Int("port", e.Tag.Port),
	}
	if len(e.Tag.ClusterID) > 0 {
		fields = append(fields, zap.ByteString("cluster_id", e.Tag.ClusterID))
	}
	if e.Kind == ConnectionDown {
		fields = append(fields, zap.String("reason", e.Reason.String()))
		if e.ReasonErr != nil {
			fields = append(fields, zap.Error(e.ReasonErr))
		}
	}
	s.log.Info("connection_status", fields...)
}
