package netmsg

import "testing"

func TestOutboundInboundRoundTrip(t *testing.T) {
	out := NewOutbound()
	out.AddByte(0x42)
	out.AddU16(0xBEEF)
	out.AddU32(0xDEADBEEF)
	out.AddString("hello")

	in := NewInbound()
	copy(in.Buffer()[InitialPosition:], out.Body())
	in.Reset()
	in.SetLength(out.Length())

	if got := in.GetByte(); got != 0x42 {
		t.Fatalf("GetByte() = %#x, want 0x42", got)
	}
	if got := in.GetU16(); got != 0xBEEF {
		t.Fatalf("GetU16() = %#x, want 0xBEEF", got)
	}
	if got := in.GetU32(); got != 0xDEADBEEF {
		t.Fatalf("GetU32() = %#x, want 0xDEADBEEF", got)
	}
	if got := in.GetString(); got != "hello" {
		t.Fatalf("GetString() = %q, want %q", got, "hello")
	}
}

func TestInboundOverrunLatchesAndReturnsZero(t *testing.T) {
	in := NewInbound()
	in.Reset()
	in.SetLength(2)

	if in.Overrun() {
		t.Fatalf("Overrun() true before any read")
	}

	if got := in.GetU64(); got != 0 {
		t.Fatalf("GetU64() past logical length = %#x, want 0", got)
	}
	if !in.Overrun() {
		t.Fatalf("Overrun() false after reading past logical length")
	}
	if got := in.GetByte(); got != 0 {
		t.Fatalf("GetByte() after overrun = %#x, want 0", got)
	}
}

func TestOutboundAddCryptoHeaderFraming(t *testing.T) {
	out := NewOutbound()
	out.AddString("ping")
	bodyLen := out.Length()

	out.WriteMessageLength()
	out.AddCryptoHeader()

	framed := out.OutputBuffer()
	// outer length (2) + checksum (4) + inner length (2) + body.
	wantLen := 2 + 4 + 2 + int(bodyLen)
	if len(framed) != wantLen {
		t.Fatalf("framed length = %d, want %d", len(framed), wantLen)
	}
}

func TestOutboundAddStringRejectsOversize(t *testing.T) {
	out := NewOutbound()
	big := make([]byte, maxStringLength+1)
	out.AddString(string(big))
	if out.Length() != 0 {
		t.Fatalf("AddString with oversize payload should be a no-op, length = %d", out.Length())
	}
}

func TestSkipBytesRewind(t *testing.T) {
	in := NewInbound()
	in.Reset()
	in.SetLength(8)

	_ = in.GetU32()
	in.SkipBytes(-4)
	if in.Position() != InitialPosition {
		t.Fatalf("Position() after rewind = %d, want %d", in.Position(), InitialPosition)
	}
}
