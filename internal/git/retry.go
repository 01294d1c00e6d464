package git

import (
	"context"
	"fmt"
	"log/slog"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// withRetry runs fn under the client's retry policy. Exhausted retries are
// reported as a network error naming the retry count.
func (c *Client) withRetry(ctx context.Context, url string, fn func() (string, error)) (string, error) {
	var path string
	retries, err := c.policy.Do(ctx, c.sleep, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying clone", logfields.URL(url), slog.Int("attempt", attempt))
		}
		var err error
		path, err = fn()
		return err
	})
	switch {
	case err == nil:
		return path, nil
	case ctx.Err() != nil && !derrors.IsRetryable(err):
		return "", classifyError(url, err)
	case retries == 0 || !derrors.IsRetryable(err):
		return "", err
	default:
		return "", derrors.Wrap(err, derrors.CategoryNetwork, derrors.SeverityError,
			fmt.Sprintf("clone failed after %d retries", retries)).WithContext("url", url)
	}
}
