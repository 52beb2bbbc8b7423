package venue

import "fmt"

// ConnectionError means the venue was unreachable or rejected
// authentication at session start. The session stays Idle and does not
// retry automatically.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("venue connection: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError means account or market data was unavailable mid-loop.
// The affected symbol is skipped for the cycle and the loop continues.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("venue query %s: %v", e.Op, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// ExecutionError means the venue rejected an order. It is notified
// with the venue's reason and not retried within the cycle.
type ExecutionError struct {
	Symbol string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("order %s rejected: %v", e.Symbol, e.Err)
}
func (e *ExecutionError) Unwrap() error { return e.Err }
