package vless

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
)

const testUUID = "e5185305-1984-4084-81e0-f77271159c62"

func testCodec(t *testing.T) UUIDCodec {
	t.Helper()
	c, err := NewUUIDCodec(testUUID)
	if err != nil {
		t.Fatalf("NewUUIDCodec: %v", err)
	}
	return c
}

func uuidBytes(t *testing.T) []byte {
	t.Helper()
	c := testCodec(t)
	b := c.Bytes()
	return b[:]
}

func buildHeader(t *testing.T, cmd byte, port uint16, atype byte, addr []byte, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(0) // version
	buf.Write(uuidBytes(t))
	buf.WriteByte(0) // option length
	buf.WriteByte(cmd)
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, port)
	buf.Write(portBuf)
	buf.WriteByte(atype)
	buf.Write(addr)
	buf.Write(payload)
	return buf.Bytes()
}

func TestParseHeaderTCPIPv4(t *testing.T) {
	msg := buildHeader(t, byte(CommandTCP), 443, byte(AddressIPv4), []byte{1, 1, 1, 1}, []byte("HI"))
	req, err := ParseHeader(msg, testCodec(t))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if req.Command != CommandTCP {
		t.Errorf("command = %v, want TCP", req.Command)
	}
	if req.Endpoint.Type != AddressIPv4 || !req.Endpoint.IP.Equal(net.IPv4(1, 1, 1, 1)) {
		t.Errorf("endpoint = %+v", req.Endpoint)
	}
	if req.Endpoint.Port != 443 {
		t.Errorf("port = %d, want 443", req.Endpoint.Port)
	}
	if got := msg[req.PayloadOffset:]; string(got) != "HI" {
		t.Errorf("residual payload = %q, want %q", got, "HI")
	}
}

func TestParseHeaderDomain(t *testing.T) {
	domain := "example.com"
	addr := append([]byte{byte(len(domain))}, domain...)
	msg := buildHeader(t, byte(CommandTCP), 80, byte(AddressDomain), addr, []byte("GET / HTTP/1.0\r\n\r\n"))
	req, err := ParseHeader(msg, testCodec(t))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if req.Endpoint.Domain != domain {
		t.Errorf("domain = %q, want %q", req.Endpoint.Domain, domain)
	}
	if req.Endpoint.HostPort() != "example.com:80" {
		t.Errorf("HostPort = %q", req.Endpoint.HostPort())
	}
}

func TestParseHeaderIPv6NoCompression(t *testing.T) {
	addr := net.ParseIP("2001:db8::1").To16()
	msg := buildHeader(t, byte(CommandTCP), 443, byte(AddressIPv6), addr, nil)
	req, err := ParseHeader(msg, testCodec(t))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	want := "2001:db8:0:0:0:0:0:1"
	if got := req.Endpoint.Host(); got != want {
		t.Errorf("Host() = %q, want %q (no zero-group compression)", got, want)
	}
}

func TestParseHeaderUDPOnPort53(t *testing.T) {
	domain := "dns.local"
	addr := append([]byte{byte(len(domain))}, domain...)
	query := append([]byte{0, 0x1c}, bytes.Repeat([]byte{0xAA}, 28)...)
	msg := buildHeader(t, byte(CommandUDP), 53, byte(AddressDomain), addr, query)
	req, err := ParseHeader(msg, testCodec(t))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if req.Command != CommandUDP {
		t.Errorf("command = %v, want UDP", req.Command)
	}
}

func TestParseHeaderUDPNotPermitted(t *testing.T) {
	msg := buildHeader(t, byte(CommandUDP), 443, byte(AddressIPv4), []byte{1, 1, 1, 1}, nil)
	_, err := ParseHeader(msg, testCodec(t))
	if !errors.Is(err, ErrUDPNotPermitted) {
		t.Fatalf("err = %v, want ErrUDPNotPermitted", err)
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	for n := 0; n < minHeaderLen; n++ {
		msg := make([]byte, n)
		_, err := ParseHeader(msg, testCodec(t))
		if !errors.Is(err, ErrNeedMore) {
			t.Fatalf("len %d: err = %v, want ErrNeedMore", n, err)
		}
	}
}

func TestParseHeaderNeedMoreDoesNotConsume(t *testing.T) {
	full := buildHeader(t, byte(CommandTCP), 443, byte(AddressDomain), append([]byte{11}, "example.com"...), []byte("payload"))
	// Feed one byte at a time; every prefix short of the full header must
	// report ErrNeedMore, and the final prefix must parse successfully
	// with the same result as parsing the whole thing at once.
	for n := 0; n < len(full)-len("payload"); n++ {
		_, err := ParseHeader(full[:n], testCodec(t))
		if err == nil {
			continue // some prefixes may already be long enough if payload is empty; not expected here
		}
		if !errors.Is(err, ErrNeedMore) {
			t.Fatalf("prefix len %d: err = %v, want ErrNeedMore", n, err)
		}
	}
	req, err := ParseHeader(full, testCodec(t))
	if err != nil {
		t.Fatalf("ParseHeader(full): %v", err)
	}
	if string(full[req.PayloadOffset:]) != "payload" {
		t.Errorf("residual = %q", full[req.PayloadOffset:])
	}
}

func TestParseHeaderInvalidUser(t *testing.T) {
	msg := buildHeader(t, byte(CommandTCP), 443, byte(AddressIPv4), []byte{1, 1, 1, 1}, nil)
	msg[1] = 0 // corrupt a UUID byte
	_, err := ParseHeader(msg, testCodec(t))
	if !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("err = %v, want ErrInvalidUser", err)
	}
}

func TestParseHeaderAllZeroUser(t *testing.T) {
	msg := buildHeader(t, byte(CommandTCP), 443, byte(AddressIPv4), []byte{1, 1, 1, 1}, []byte("HI"))
	for i := 1; i < 17; i++ {
		msg[i] = 0
	}
	_, err := ParseHeader(msg, testCodec(t))
	if !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("err = %v, want ErrInvalidUser", err)
	}
}

func TestParseHeaderUnsupportedCommand(t *testing.T) {
	msg := buildHeader(t, 99, 443, byte(AddressIPv4), []byte{1, 1, 1, 1}, nil)
	_, err := ParseHeader(msg, testCodec(t))
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("err = %v, want ErrUnsupportedCommand", err)
	}
}

func TestParseHeaderInvalidAddressType(t *testing.T) {
	msg := buildHeader(t, byte(CommandTCP), 443, 7, []byte{1, 1, 1, 1}, nil)
	_, err := ParseHeader(msg, testCodec(t))
	if !errors.Is(err, ErrInvalidAddressType) {
		t.Fatalf("err = %v, want ErrInvalidAddressType", err)
	}
}

func TestParseHeaderEmptyDomain(t *testing.T) {
	// A zero-length domain with no payload is only 23 bytes, below
	// minHeaderLen, so one payload byte is added to get past the
	// fast-reject length check and reach the domain-length check.
	msg := buildHeader(t, byte(CommandTCP), 443, byte(AddressDomain), []byte{0}, []byte("x"))
	_, err := ParseHeader(msg, testCodec(t))
	if !errors.Is(err, ErrEmptyAddress) {
		t.Fatalf("err = %v, want ErrEmptyAddress", err)
	}
}

func TestResponseHeader(t *testing.T) {
	resp := Response(0)
	if !bytes.Equal(resp, []byte{0, 0}) {
		t.Errorf("Response(0) = %v, want [0 0]", resp)
	}
}
