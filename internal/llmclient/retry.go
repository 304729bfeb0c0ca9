package llmclient

import (
	"context"
	"time"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// maxAttempts and initialBackoff mirror spec.md's retry contract:
// callers get ≤2 retries (3 total attempts), exponential backoff
// starting at 500ms, same shape as the teacher's ollama.Client
// GenerateWithTokens loop but driven by domain.ErrorKind rather than
// raw error strings.
const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// WithRetry runs op up to maxAttempts times, retrying only on
// domain.KindTransient, doubling the backoff each time, and stopping
// immediately on a Permanent or Cancelled classification or on ctx
// cancellation.
func WithRetry(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", domain.NewError(domain.KindCancelled, "llmclient.WithRetry", err)
		}

		text, err := op(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !domain.IsKind(err, domain.KindTransient) {
			return "", err
		}
		if attempt == maxAttempts-1 {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", domain.NewError(domain.KindCancelled, "llmclient.WithRetry", ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return "", lastErr
}
