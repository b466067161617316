// Package netutil selects the daemon's HTTP bind address.
package netutil

import (
	"fmt"
	"net"
)

// SelectBindAddr returns the first listenable address: the preferred one
// when free, otherwise the candidates in order when fallback is allowed.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		if addrFree(preferred) {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		if addrFree(addr) {
			return addr, nil
		}
	}
	return "", fmt.Errorf("no free overlay bind address among %d candidates", len(candidates))
}

func addrFree(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
