package udp

import (
	"errors"
	"net"
	"strings"
	"testing"

	"compass-ng/internal/fixedpt"
)

// fakeConn records datagrams instead of sending them.
type fakeConn struct {
	writes   [][]byte
	writeErr error
	closed   bool
	closeErr error
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return c.closeErr
}

func dialTo(fc *fakeConn, gotRaddr **net.UDPAddr) dialFunc {
	return func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		if network != "udp" || laddr != nil {
			return nil, errors.New("unexpected dial args")
		}
		if gotRaddr != nil {
			*gotRaddr = raddr
		}
		return fc, nil
	}
}

func TestNewBroadcaster_DialsBroadcastDest(t *testing.T) {
	var raddr *net.UDPAddr
	b, err := newBroadcaster("192.168.10.255:10110", net.ResolveUDPAddr, dialTo(&fakeConn{}, &raddr))
	if err != nil {
		t.Fatalf("newBroadcaster: %v", err)
	}
	if raddr == nil || raddr.Port != 10110 || !raddr.IP.Equal(net.IPv4(192, 168, 10, 255)) {
		t.Fatalf("raddr=%v want 192.168.10.255:10110", raddr)
	}
	if b.Dest() != "192.168.10.255:10110" {
		t.Fatalf("Dest()=%q", b.Dest())
	}
}

func TestNewBroadcaster_Errors(t *testing.T) {
	resolveErr := errors.New("no such host")
	dialErr := errors.New("network unreachable")

	cases := []struct {
		name    string
		resolve resolveFunc
		dial    dialFunc
		want    error
		prefix  string
	}{
		{
			name:    "Resolve",
			resolve: func(string, string) (*net.UDPAddr, error) { return nil, resolveErr },
			dial:    dialTo(&fakeConn{}, nil),
			want:    resolveErr,
			prefix:  "udp: resolve plotter.local:10110: ",
		},
		{
			name: "Dial",
			resolve: func(string, string) (*net.UDPAddr, error) {
				return &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 10110}, nil
			},
			dial: func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) {
				return nil, dialErr
			},
			want:   dialErr,
			prefix: "udp: dial plotter.local:10110: ",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := newBroadcaster("plotter.local:10110", tc.resolve, tc.dial)
			if b != nil {
				t.Fatalf("expected nil broadcaster on error")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
			if !strings.HasPrefix(err.Error(), tc.prefix) {
				t.Fatalf("err=%q want prefix %q", err.Error(), tc.prefix)
			}
		})
	}
}

func TestBroadcaster_SendSkipsEmpty(t *testing.T) {
	fc := &fakeConn{}
	b := &Broadcaster{dest: "x", conn: fc}
	if err := b.Send(nil); err != nil {
		t.Fatalf("Send(nil): %v", err)
	}
	if err := b.Send([]byte{}); err != nil {
		t.Fatalf("Send(empty): %v", err)
	}
	if len(fc.writes) != 0 {
		t.Fatalf("writes=%d want 0", len(fc.writes))
	}
}

func TestBroadcaster_SendWrapsError(t *testing.T) {
	fc := &fakeConn{writeErr: errors.New("buffer full")}
	b := &Broadcaster{dest: "10.0.0.255:10110", conn: fc}

	err := b.Send([]byte("$HCHDM,0.0,M*29\r\n"))
	if !errors.Is(err, fc.writeErr) {
		t.Fatalf("err=%v want %v", err, fc.writeErr)
	}
	if want := "udp: send to 10.0.0.255:10110: buffer full"; err.Error() != want {
		t.Fatalf("err=%q want %q", err.Error(), want)
	}
}

func TestBroadcaster_CloseWithoutConn(t *testing.T) {
	if err := (&Broadcaster{}).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestHeadingSender_OverDialedBroadcaster(t *testing.T) {
	fc := &fakeConn{}
	b, err := newBroadcaster("127.0.0.1:10110", net.ResolveUDPAddr, dialTo(fc, nil))
	if err != nil {
		t.Fatalf("newBroadcaster: %v", err)
	}
	s := NewHeadingSender(b, "II")

	for _, h := range []fixedpt.BRad{0, fixedpt.SemiCirc} {
		if err := s.SendHeading(h); err != nil {
			t.Fatalf("SendHeading(%d): %v", h, err)
		}
	}
	want := []string{"$IIHDM,0.0,M*22\r\n", "$IIHDM,180.0,M*2B\r\n"}
	if len(fc.writes) != len(want) {
		t.Fatalf("writes=%q want %q", fc.writes, want)
	}
	for i := range want {
		if string(fc.writes[i]) != want[i] {
			t.Fatalf("write %d=%q want %q", i, fc.writes[i], want[i])
		}
	}

	fc.closeErr = errors.New("already closed")
	if err := s.Close(); !errors.Is(err, fc.closeErr) || !fc.closed {
		t.Fatalf("Close err=%v closed=%v", err, fc.closed)
	}
}
