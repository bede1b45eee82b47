//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package preflight

func probeRawSocket() (bool, string) {
	return false, "raw socket probe not supported on this platform"
}
