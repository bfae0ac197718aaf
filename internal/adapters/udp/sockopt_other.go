//go:build !unix

package udp

import "syscall"

func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
