package types

// ============================================================================
//                              Command - message commands
// ============================================================================

// Command identifies the RPC a Message carries. The transport core only
// gives special treatment to the six commands below; every other value is opaque
// and passes through unmodified.
type Command byte

const (
	CommandPing       Command = 1
	CommandNeighbor   Command = 2
	CommandDirectData Command = 3
	CommandRCON       Command = 4
	CommandHolep      Command = 5
	CommandTracker    Command = 6
)

// String returns a human-readable command name, falling back to "opaque"
// for commands the core does not recognize.
func (c Command) String() string {
	switch c {
	case CommandPing:
		return "PING"
	case CommandNeighbor:
		return "NEIGHBOR"
	case CommandDirectData:
		return "DIRECT_DATA"
	case CommandRCON:
		return "RCON"
	case CommandHolep:
		return "HOLEP"
	case CommandTracker:
		return "TRACKER"
	default:
		return "opaque"
	}
}

// ============================================================================
//                              MessageType - request/reply kind
// ============================================================================

// MessageType distinguishes requests from the various reply kinds.
type MessageType byte

const (
	TypeRequest1 MessageType = iota
	TypeRequest2
	TypeRequest3
	TypeRequest4
	TypeOK
	TypeDenied
	TypeNotFound
	TypeException
)

func (t MessageType) String() string {
	switch t {
	case TypeRequest1:
		return "REQUEST_1"
	case TypeRequest2:
		return "REQUEST_2"
	case TypeRequest3:
		return "REQUEST_3"
	case TypeRequest4:
		return "REQUEST_4"
	case TypeOK:
		return "OK"
	case TypeDenied:
		return "DENIED"
	case TypeNotFound:
		return "NOT_FOUND"
	case TypeException:
		return "EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

// IsRequest reports whether t is one of the REQUEST_n kinds.
func (t MessageType) IsRequest() bool {
	return t == TypeRequest1 || t == TypeRequest2 || t == TypeRequest3 || t == TypeRequest4
}

// ============================================================================
//                              StrategyVerdict
// ============================================================================

// StrategyVerdict is the outcome of the send-strategy selector.
type StrategyVerdict int

const (
	StrategyDirect StrategyVerdict = iota
	StrategyRCON
	StrategyRelay
	StrategyHolePunch
)

func (v StrategyVerdict) String() string {
	switch v {
	case StrategyDirect:
		return "DIRECT"
	case StrategyRCON:
		return "RCON"
	case StrategyRelay:
		return "RELAY"
	case StrategyHolePunch:
		return "HOLE-PUNCH"
	default:
		return "UNKNOWN"
	}
}
