package websocket

// processDataFrame implements the Message Assembler's receive-side state
// machine (spec §4.3). Control frames never reach this function; it only
// ever sees opcodeText, opcodeBinary, or opcodeContinuation. Callers must
// hold e.mu. A non-nil return is a protocol error the caller must turn
// into a failure close.
//
//nolint:cyclop // one function mirrors one state-transition table, by design
func (e *Engine) processDataFrame(f *wireFrame) error {
	switch f.opcode {
	case opcodeText, opcodeBinary:
		if e.receiving != dataNone {
			return newProtocolError(CloseProtocolError, "last message incomplete")
		}

		if f.fin {
			if f.opcode == opcodeText && !validTextPayload(f.payload) {
				return newProtocolError(CloseInvalidFramePayloadData, "invalid UTF-8 encoding in text message")
			}
			e.emitMessage(f.opcode, f.payload)
			return nil
		}

		e.receiving = kindOf(f.opcode)
		e.messageBuffer = append(e.messageBuffer[:0], f.payload...)
		return nil

	case opcodeContinuation:
		if e.receiving == dataNone {
			return newProtocolError(CloseProtocolError, "unexpected continuation frame")
		}

		e.messageBuffer = append(e.messageBuffer, f.payload...)

		if !f.fin {
			return nil
		}

		opcode := byte(opcodeBinary)
		if e.receiving == dataText {
			opcode = opcodeText
		}
		payload := e.messageBuffer
		e.receiving = dataNone
		e.messageBuffer = nil

		if opcode == opcodeText && !validTextPayload(payload) {
			return newProtocolError(CloseInvalidFramePayloadData, "invalid UTF-8 encoding in text message")
		}
		e.emitMessage(opcode, payload)
		return nil
	}

	return nil
}

// emitMessage queues a Text or Binary event. Callers must hold e.mu.
func (e *Engine) emitMessage(opcode byte, payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)

	kind := EventBinary
	if opcode == opcodeText {
		kind = EventText
	}
	e.enqueue(Event{Kind: kind, Data: data})
}

func kindOf(opcode byte) dataKind {
	if opcode == opcodeText {
		return dataText
	}
	return dataBinary
}

// sendOpcode picks the opcode for an outbound Text/Binary send, given
// whatever fragmented send of the same type is already in progress
// (spec §4.3's symmetric send-side state machine). Callers must hold e.mu.
func (e *Engine) sendOpcode(kind dataKind) byte {
	if e.sending == kind {
		return opcodeContinuation
	}
	if kind == dataText {
		return opcodeText
	}
	return opcodeBinary
}
