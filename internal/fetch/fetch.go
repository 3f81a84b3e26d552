// Package fetch defines the boundary to the remote data source. The
// engine never inspects payload contents; a Fetcher encapsulates the
// network request, the parsing, and the classification of "does not
// exist" versus "transient failure".
package fetch

// Kind classifies a single probe. NotFound is a permanent, expected
// negative that drives the circuit breaker; a transient error must not.
// Collapsing them to a binary would either trip the breaker on flaky
// networks or scan past the end of real data forever.
type Kind int

const (
	// Success means the id exists and the payload was retrieved.
	Success Kind = iota
	// NotFound means the id does not correspond to a real unit.
	NotFound
	// TransientError means the probe failed for a retry-worthy reason
	// (network, parse); the id stays absent from the manifest and
	// reappears in a future gap.
	TransientError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NotFound:
		return "notfound"
	case TransientError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the result of probing a single id.
type Outcome struct {
	Kind    Kind
	Payload []byte // set only on Success
	Err     error  // set only on TransientError
}
