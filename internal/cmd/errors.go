package cmd

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/present"
)

func handleError(err error) {
	drainStdin()

	format := "\n%s\n\n"

	var ferr flagParseError
	if errors.As(err, &ferr) {
		args := []any{
			fmt.Sprintf(
				"Check out %s %s",
				present.StderrStyles().InlineCode.Render("recipe-finder -h"),
				present.StderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				present.StderrStyles().InlineCode.Render(ferr.Flag()),
			),
		}
		fmt.Fprintf(os.Stderr, format+"%s\n\n", args...)
		return
	}

	var merr errs.Error
	if errors.As(err, &merr) {
		formatArgs := []any{present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorHeader.String(), merr.Reason)}
		if merr.Err != nil && !errors.Is(merr.Err, huh.ErrUserAborted) {
			format += "%s\n\n"
			formatArgs = append(formatArgs, present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorDetails.Render(err.Error())))
		}
		fmt.Fprintf(os.Stderr, format, formatArgs...)
		return
	}

	fmt.Fprintf(os.Stderr, format, present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorDetails.Render(err.Error())))
}

var (
	unknownFlagRe  = regexp.MustCompile(`^unknown (?:shorthand )?flag: '?(.+?)'?(?: in .+)?$`)
	missingArgRe   = regexp.MustCompile(`^flag needs an argument: (?:'(\w)' in )?(-{1,2}\S+)$`)
	invalidValueRe = regexp.MustCompile(`^invalid argument ".*" for "(.+?)" flag: `)
)

// flagParseError wraps the errors pflag returns with the offending flag and
// a reason suitable for the terminal.
type flagParseError struct {
	err    error
	flag   string
	reason string
}

func newFlagParseError(err error) flagParseError {
	msg := err.Error()
	ferr := flagParseError{err: err, reason: "Flag %s is invalid.", flag: msg}
	switch {
	case unknownFlagRe.MatchString(msg):
		ferr.flag = unknownFlagRe.FindStringSubmatch(msg)[1]
		ferr.reason = "Flag %s is missing."
	case missingArgRe.MatchString(msg):
		ferr.flag = missingArgRe.FindStringSubmatch(msg)[2]
		ferr.reason = "Flag %s needs an argument."
	case invalidValueRe.MatchString(msg):
		ferr.flag = invalidValueRe.FindStringSubmatch(msg)[1]
		ferr.reason = "Flag %s have an invalid argument."
	}
	ferr.flag = strings.TrimSpace(ferr.flag)
	return ferr
}

func (f flagParseError) Error() string        { return f.err.Error() }
func (f flagParseError) Unwrap() error        { return f.err }
func (f flagParseError) Flag() string         { return f.flag }
func (f flagParseError) ReasonFormat() string { return f.reason }
