package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/recipe-finder/internal/errs"
)

// DescribeError turns a failure of a search into a user-facing error.
// Errors that already carry a reason are returned as they are.
func DescribeError(err error, model string) errs.Error {
	var e errs.Error
	if errors.As(err, &e) {
		return e
	}
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		return describeProviderError(providerErr, model)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return errs.Wrap(err, "Search cancelled.")
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(err, "Search timed out.")
	}
	return errs.Wrap(err, fmt.Sprintf("There was a problem searching with %s.", model))
}

func describeProviderError(err *fantasy.ProviderError, model string) errs.Error {
	switch err.StatusCode {
	case http.StatusNotFound:
		return errs.Wrap(err, fmt.Sprintf("Missing model '%s'.", model))
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.Wrap(err, "The API rejected your credentials.")
	case http.StatusBadRequest:
		if isContextLengthExceeded(err) {
			return errs.Wrap(err, "Maximum prompt size exceeded. Page snapshots grew too large; try a narrower search.")
		}
	}

	reason := fantasy.ErrorTitleForStatusCode(err.StatusCode)
	if err.IsRetryable() {
		if reason == "" {
			reason = "The API is busy."
		}
		return errs.Wrap(err, reason+" Try again in a moment.")
	}
	if reason == "" {
		reason = fmt.Sprintf("API request error for model %s.", model)
	}
	return errs.Wrap(err, reason)
}

func isContextLengthExceeded(err *fantasy.ProviderError) bool {
	for _, s := range []string{err.Message, string(err.ResponseBody)} {
		s = strings.ToLower(s)
		if strings.Contains(s, "context_length_exceeded") || strings.Contains(s, "prompt is too long") {
			return true
		}
	}
	return false
}
