package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// SOCKS4 reply codes.
const (
	socks4Granted  = 0x5A
	socks4Rejected = 0x5B
)

// socks4Dialer speaks the SOCKS4 CONNECT handshake, with the 4a extension
// for hostname targets (x/net/proxy only covers SOCKS5).
type socks4Dialer struct {
	proxyAddr string
	userID    string
	dialer    *net.Dialer
}

func (d *socks4Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4":
	default:
		return nil, fmt.Errorf("socks4: network %q not supported", network)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("socks4: invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("socks4: invalid port in %q", addr)
	}

	conn, err := d.dialer.DialContext(ctx, "tcp", d.proxyAddr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	// VN=4, CD=1 (CONNECT), DSTPORT, DSTIP, USERID, NUL. Hostname targets
	// use the 4a form: DSTIP 0.0.0.1 with the hostname appended after the
	// userid terminator.
	req := []byte{4, 1, byte(port >> 8), byte(port)}
	hostname := ""
	if ip := net.ParseIP(host); ip != nil {
		ip4 := ip.To4()
		if ip4 == nil {
			conn.Close()
			return nil, fmt.Errorf("socks4: IPv6 target %q not supported", host)
		}
		req = append(req, ip4...)
	} else {
		req = append(req, 0, 0, 0, 1)
		hostname = host
	}
	req = append(req, d.userID...)
	req = append(req, 0)
	if hostname != "" {
		req = append(req, hostname...)
		req = append(req, 0)
	}

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("socks4: writing request: %w", err)
	}

	// Reply: VN, CD, DSTPORT, DSTIP (8 bytes total); only CD matters.
	var reply [8]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("socks4: reading reply: %w", err)
	}
	if reply[1] != socks4Granted {
		conn.Close()
		return nil, fmt.Errorf("socks4: connect to %s rejected (code 0x%02X)", addr, reply[1])
	}

	return conn, nil
}
