package ingest

import (
	"context"
	"errors"

	"github.com/spigell/scholarship-hunter/internal/store"
)

// ErrStopped is returned by an Approver when the operator ends the run.
// The pending record and every later candidate are left alone.
var ErrStopped = errors.New("stopped by operator")

// Approver gets the last word before a record is appended.
type Approver interface {
	Approve(ctx context.Context, rec store.Record) (bool, error)
}

// AutoApprove accepts every record. It is used for unattended runs.
type AutoApprove struct{}

func (AutoApprove) Approve(context.Context, store.Record) (bool, error) { return true, nil }
