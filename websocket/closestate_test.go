package websocket

import "testing"

// TestBuildClosePayload_NoStatusReceived checks that code 1005 produces
// no wire payload at all (RFC 6455 Section 7.1.5/7.1.6: it is synthetic
// and must never be sent).
func TestBuildClosePayload_NoStatusReceived(t *testing.T) {
	if p := buildClosePayload(CloseNoStatusReceived, "ignored"); p != nil {
		t.Errorf("expected nil payload for CloseNoStatusReceived, got %v", p)
	}
}

// TestBuildClosePayload_CodeAndReason checks the normal encoding: 2-byte
// big-endian code followed by the UTF-8 reason.
func TestBuildClosePayload_CodeAndReason(t *testing.T) {
	p := buildClosePayload(CloseNormalClosure, "bye")
	if len(p) != 5 {
		t.Fatalf("expected 5 byte payload, got %d", len(p))
	}
	if p[0] != 0x03 || p[1] != 0xE8 {
		t.Errorf("expected big-endian 1000, got %x %x", p[0], p[1])
	}
	if string(p[2:]) != "bye" {
		t.Errorf("expected reason 'bye', got %q", p[2:])
	}
}

// TestParseClosePayload_Empty checks a zero-length payload surfaces as
// CloseNoStatusReceived (RFC 6455 Section 7.1.5).
func TestParseClosePayload_Empty(t *testing.T) {
	code, reason, err := parseClosePayload(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != CloseNoStatusReceived {
		t.Errorf("expected CloseNoStatusReceived, got %d", code)
	}
	if reason != "" {
		t.Errorf("expected empty reason, got %q", reason)
	}
}

// TestParseClosePayload_Truncated checks a single stray byte is rejected.
func TestParseClosePayload_Truncated(t *testing.T) {
	_, _, err := parseClosePayload([]byte{0x03})
	if _, ok := err.(*protocolError); !ok {
		t.Fatalf("expected protocolError, got %v", err)
	}
}

// TestParseClosePayload_InvalidUTF8Reason checks the reason bytes are
// UTF-8 validated (RFC 6455 Section 7.1.5).
func TestParseClosePayload_InvalidUTF8Reason(t *testing.T) {
	payload := []byte{0x03, 0xE8, 0xFF, 0xFE}
	_, _, err := parseClosePayload(payload)
	pe, ok := err.(*protocolError)
	if !ok {
		t.Fatalf("expected protocolError, got %v", err)
	}
	if pe.code != CloseInvalidFramePayloadData {
		t.Errorf("expected close 1007, got %d", pe.code)
	}
}

// TestParseClosePayload_RoundTrip checks build/parse agree.
func TestParseClosePayload_RoundTrip(t *testing.T) {
	payload := buildClosePayload(CloseGoingAway, "server restarting")
	code, reason, err := parseClosePayload(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != CloseGoingAway {
		t.Errorf("expected CloseGoingAway, got %d", code)
	}
	if reason != "server restarting" {
		t.Errorf("expected reason preserved, got %q", reason)
	}
}
