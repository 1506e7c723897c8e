// Package reporter forwards server errors to Rollbar.
package reporter

import (
	"net/http"
	"os"

	"github.com/rollbar/rollbar-go"

	"github.com/noah-isme/student-record-api/pkg/config"
)

// Reporter records unexpected failures.
type Reporter interface {
	Report(r *http.Request, err error)
	Close() error
}

// New returns a Rollbar reporter, or a no-op one when no token is configured.
func New(cfg *config.Config) Reporter {
	if cfg == nil || cfg.Rollbar.Token == "" {
		return Nop{}
	}
	host, _ := os.Hostname()
	client := rollbar.New(cfg.Rollbar.Token, cfg.Env, cfg.Rollbar.CodeVersion, host, "github.com/noah-isme/student-record-api")
	return &Rollbar{client: client}
}

// Rollbar sends request errors to Rollbar.
type Rollbar struct {
	client *rollbar.Client
}

// Report sends err with the request context at error level.
func (r *Rollbar) Report(req *http.Request, err error) {
	if err == nil {
		return
	}
	if req == nil {
		r.client.ErrorWithLevel(rollbar.ERR, err)
		return
	}
	r.client.RequestError(rollbar.ERR, req, err)
}

// Close flushes queued items.
func (r *Rollbar) Close() error {
	return r.client.Close()
}

// Nop discards reports.
type Nop struct{}

// Report does nothing.
func (Nop) Report(*http.Request, error) {}

// Close does nothing.
func (Nop) Close() error { return nil }
