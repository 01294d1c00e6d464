package git

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
)

// classifyError maps clone failures onto deploy errors. Authentication,
// missing repositories and bad URLs are permanent source errors; everything
// else is a retryable network error.
func classifyError(url string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := derrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return derrors.Wrap(err, derrors.CategoryNetwork, derrors.SeverityError, "clone canceled").
			WithContext("url", url)
	}
	if isPermanent(err) {
		return derrors.Wrap(err, derrors.CategorySource, derrors.SeverityError, "repository cannot be cloned").
			WithContext("url", url)
	}
	return derrors.CloneFailed(url, err)
}

func isPermanent(err error) bool {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"auth", "permission", "denied", "not found", "no such", "invalid reference", "unsupported protocol", "couldn't find remote ref"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
