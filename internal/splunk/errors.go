package splunk

import "errors"

var (
	// ErrAuth covers login failures, rejected credentials and an
	// unreachable management port.
	ErrAuth = errors.New("splunk authentication failed")

	// ErrTimeout means the job never reached done/failed inside the
	// configured wait budget.
	ErrTimeout = errors.New("splunk search job timed out")

	// ErrProtocol means Splunk answered with something the client
	// could not interpret.
	ErrProtocol = errors.New("malformed splunk response")
)
