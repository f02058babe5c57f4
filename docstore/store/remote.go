package store

import (
	"context"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/metrics"
	"github.com/arthur-debert/docstore/docstore/retry"
	"go.uber.org/zap"
)

// doRemote runs one backend call under the server's retry policy and maps
// the final error through the classifier. Transient failures never escape
// unless the attempt cap is exhausted.
func doRemote[T any](ctx context.Context, s *Server, op string, action func(context.Context) (T, error)) (T, error) {
	shouldRetry := func(err error) bool {
		if !backend.ShouldRetry(err) {
			return false
		}
		if code, ok := backend.CodeOf(err); ok && code == backend.StatusTooManyRequests {
			metrics.Throttled.Inc()
		}
		metrics.Retries.WithLabelValues(op).Inc()
		s.logger.Debug("retrying remote call",
			zap.String("operation", op),
			zap.Error(err))
		return true
	}
	result, err := retry.Do(ctx, s.maxAttempts, action, shouldRetry, s.delay)
	if err != nil {
		if backend.ShouldRetry(err) {
			s.logger.Warn("remote call exhausted retries",
				zap.String("operation", op),
				zap.Int("attempts", s.maxAttempts),
				zap.Error(err))
		}
		return result, backend.Classify(err)
	}
	return result, nil
}
