package provider

import (
	"context"

	"invest-analyzer/internal/errs"
)

// UnconfiguredBroker is wired when no broker adapter is installed; every
// sync against it fails fast with a clear error instead of hanging.
type UnconfiguredBroker struct{}

func (UnconfiguredBroker) Connect(context.Context) (BrokerSession, error) {
	return nil, errs.Invalid("", "broker provider not configured")
}
