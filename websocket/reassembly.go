package websocket

// reassembler accumulates inbound bytes from arbitrarily chunked
// transport deliveries and emits one decoded frame at a time once a
// complete frame is available. Partial frames remain at the head of
// buf across calls (EngineState's `frameBuffer`).
type reassembler struct {
	role Role
	buf  []byte
}

func newReassembler(role Role) *reassembler {
	return &reassembler{role: role}
}

// append buffers newBytes and decodes as many whole frames as possible.
//
// Per the spec, the maxFrameSize cap is checked against buffered bytes
// (this reassembler's accumulated, not-yet-fully-decoded bytes) plus the
// incoming chunk — not against any single frame's decoded payload length
// — and is checked before the bytes are appended.
func (r *reassembler) append(newBytes []byte, maxFrameSize int) ([]*wireFrame, error) {
	if maxFrameSize > 0 && len(r.buf)+len(newBytes) > maxFrameSize {
		return nil, newProtocolError(CloseMessageTooBig, "frame too large")
	}

	r.buf = append(r.buf, newBytes...)

	var frames []*wireFrame
	for {
		f, n, err := decodeFrame(r.buf, r.role)
		if err == errNeedMoreData {
			break
		}
		if err != nil {
			// The caller is about to tear the connection down via the
			// close state machine; no point compacting buf further.
			return frames, err
		}

		r.buf = r.buf[n:]
		frames = append(frames, f)
	}

	return frames, nil
}
