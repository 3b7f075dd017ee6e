// Package observability wires error reporting.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the Sentry client. It returns a flush function
// to call on shutdown. An empty dsn disables reporting.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports err. Its signature matches auth.ErrorReporter.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}
