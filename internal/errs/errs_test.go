package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	base := errors.New("boom")

	e := Wrap(base, "Could not search.")
	require.Equal(t, "boom", e.Error())
	require.ErrorIs(t, e, base)

	require.Equal(t, "only reason", Error{Reason: "only reason"}.Error())
	require.Equal(t, "Tool 3 failed.", Wrapf(base, "Tool %d failed.", 3).Reason)
}

func TestFrom(t *testing.T) {
	inner := Wrap(errors.New("x"), "inner reason")
	wrapped := fmt.Errorf("outer: %w", inner)

	require.Equal(t, "inner reason", From(wrapped, "fallback").Reason)
	require.Equal(t, "fallback", From(errors.New("plain"), "fallback").Reason)
}
