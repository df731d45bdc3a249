package protocol

// Disconnect codes carried by DisconnectMsg.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	ErrSessionNotFound = "E_SESSION_NOT_FOUND"
	ErrSessionFull     = "E_SESSION_FULL"
	ErrSessionEnded    = "E_SESSION_ENDED"
	ErrSlowConsumer    = "E_SLOW_CONSUMER"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrSessionNotFound: {},
	ErrSessionFull:     {},
	ErrSessionEnded:    {},
	ErrSlowConsumer:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
