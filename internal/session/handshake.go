// Package session holds the per-connection state: the login-phase handshake
// negotiator and the play-phase snapshot push.
package session

import (
	"fmt"
	"log"

	"outlands.gg/internal/guard"
	"outlands.gg/internal/protocol"
)

// HandshakeState is the server-side negotiation state for one connection.
type HandshakeState int

const (
	StateAwaitingLogin HandshakeState = iota
	StateQuerySent
	StateAccepted
	StateRejected
)

func (s HandshakeState) String() string {
	switch s {
	case StateAwaitingLogin:
		return "AWAITING_LOGIN"
	case StateQuerySent:
		return "QUERY_SENT"
	case StateAccepted:
		return "ACCEPTED"
	case StateRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Decision is the terminal outcome of a handshake. Reason is the
// user-visible disconnect message for rejections. ClientVersion is the
// decoded peer token, or -1 when it was unreadable or never arrived.
type Decision struct {
	Accepted      bool
	Reason        string
	ClientVersion int
}

// Negotiator runs the server side of the version handshake for one
// connection. It is not safe for concurrent use; handshake state is
// per-connection and needs no cross-connection synchronization.
type Negotiator struct {
	logger *log.Logger
	token  int
	state  HandshakeState
}

func NewNegotiator(logger *log.Logger, token int) *Negotiator {
	return &Negotiator{logger: logger, token: token}
}

func (n *Negotiator) State() HandshakeState { return n.state }

// Query produces the handshake query payload carrying the server's protocol
// token and moves the negotiator to QUERY_SENT. Exactly one response is
// expected afterwards.
func (n *Negotiator) Query() []byte {
	n.state = StateQuerySent
	return protocol.EncodeVersion(n.token)
}

// OnResponse consumes the single handshake response. An unreadable payload
// never propagates: it decodes to the -1 sentinel and rejects.
func (n *Negotiator) OnResponse(payload []byte) Decision {
	version := guard.RunValue(n.logger, "handshake.decode_version", protocol.VersionUnreadable, func() (int, error) {
		return protocol.DecodeVersion(payload)
	})
	if version != n.token {
		n.state = StateRejected
		return Decision{
			Reason:        fmt.Sprintf("protocol version mismatch: server %d, client %d", n.token, version),
			ClientVersion: version,
		}
	}
	n.state = StateAccepted
	return Decision{Accepted: true, ClientVersion: version}
}

// OnMissing rejects a client that does not understand the query at all.
func (n *Negotiator) OnMissing() Decision {
	n.state = StateRejected
	return Decision{
		Reason:        "required extension missing on client",
		ClientVersion: protocol.VersionUnreadable,
	}
}

// RespondToQuery is the client side: answer immediately with the client's
// own token and accept locally. The client performs no version check of its
// own; rejection is a server-only decision.
func RespondToQuery(ownToken int) []byte {
	return protocol.EncodeVersion(ownToken)
}
