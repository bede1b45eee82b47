//go:build linux || darwin || freebsd || netbsd || openbsd

package preflight

import "syscall"

// probeRawSocket tries a raw ICMP socket, then the unprivileged datagram
// variant some kernels allow through ping_group_range
func probeRawSocket() (bool, string) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_ICMP)
	if err == nil {
		syscall.Close(fd)
		return true, "created ICMP raw socket"
	}

	fd, dgramErr := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, syscall.IPPROTO_ICMP)
	if dgramErr == nil {
		syscall.Close(fd)
		return false, "only unprivileged ICMP (SOCK_DGRAM) available"
	}
	return false, "failed to create raw socket: " + err.Error()
}
