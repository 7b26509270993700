package portforwarding

import "fmt"

// Phase is the lifecycle position of a forwarded session on the server.
type Phase int32

// Phase values, in the order a successful session passes through them.
const (
	AwaitingRequest Phase = iota
	Authorizing
	Connecting
	Relaying
	Rejected
	Closed
)

func (p Phase) String() string {
	switch p {
	case AwaitingRequest:
		return "awaiting-request"
	case Authorizing:
		return "authorizing"
	case Connecting:
		return "connecting"
	case Relaying:
		return "relaying"
	case Rejected:
		return "rejected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}
