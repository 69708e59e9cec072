package websocket

import "encoding/binary"

// closeState tracks the two-phase close handshake (spec §4.4): whether
// a close frame has been sent, received, both, or neither.
type closeState struct {
	sent     bool
	received bool
}

// buildClosePayload builds the payload for an outbound close frame.
//
// Per RFC 6455 Section 7.1.5/7.1.6: code 1005 ("no status received") is
// synthetic and must never itself be sent — when the caller supplies it,
// the frame carries no payload at all. Otherwise the payload is the
// big-endian code followed by the UTF-8 reason.
func buildClosePayload(code CloseCode, reason string) []byte {
	if code == CloseNoStatusReceived {
		return nil
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return payload
}

// parseClosePayload parses a received close frame's payload.
//
// A zero-length payload surfaces as CloseNoStatusReceived (RFC 6455
// Section 7.1.5). A payload of 2+ bytes is a big-endian code followed by
// a UTF-8 reason; an invalid reason is reported as a protocol error
// (close 1007) rather than returned as (code, reason).
func parseClosePayload(payload []byte) (CloseCode, string, error) {
	if len(payload) == 0 {
		return CloseNoStatusReceived, "", nil
	}
	if len(payload) == 1 {
		return 0, "", newProtocolError(CloseProtocolError, "truncated close payload")
	}

	code := CloseCode(binary.BigEndian.Uint16(payload[:2]))
	reason := payload[2:]
	if !validTextPayload(reason) {
		return 0, "", newProtocolError(CloseInvalidFramePayloadData, "invalid UTF-8 encoding in close reason")
	}
	return code, string(reason), nil
}
