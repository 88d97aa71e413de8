// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"fmt"
	"net"
)

// DefaultNMEAGroup is the multicast group NMEA 0183 over UDP is sent to
const DefaultNMEAGroup = "224.0.0.3:10110"

const maxDatagram = 64 * 1024

// UDPConn receives NMEA datagrams, joining the group for multicast addresses
type UDPConn struct {
	conn *net.UDPConn
	packetReader
}

// OpenUDP listens on address, e.g. DefaultNMEAGroup or ":10110"
func OpenUDP(address string) (*UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("invalid UDP address %q: %w", address, err)
	}

	var conn *net.UDPConn
	if addr.IP != nil && addr.IP.IsMulticast() {
		conn, err = net.ListenMulticastUDP("udp4", nil, addr)
	} else {
		conn, err = net.ListenUDP("udp4", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	u := &UDPConn{conn: conn}
	buf := make([]byte, maxDatagram)
	u.next = func() ([]byte, error) {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
	return u, nil
}

// LocalAddr returns the bound address
func (u *UDPConn) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDPConn) Write([]byte) (int, error) {
	return 0, ErrReadOnly
}

func (u *UDPConn) Close() error {
	return u.conn.Close()
}
