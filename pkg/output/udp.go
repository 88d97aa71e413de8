// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"fmt"
	"net"
)

// UDPSink sends one datagram per sentence, to a unicast, broadcast or
// multicast destination
type UDPSink struct {
	conn *net.UDPConn
}

// NewUDPSink dials address, e.g. "224.0.0.3:10110"
func NewUDPSink(address string) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("invalid UDP destination %q: %w", address, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return &UDPSink{conn: conn}, nil
}

func (u *UDPSink) Send(sentence []byte) error {
	_, err := u.conn.Write(sentence)
	return err
}

func (u *UDPSink) Close() error {
	return u.conn.Close()
}
