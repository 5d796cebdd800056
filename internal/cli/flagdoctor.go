package cli

import (
	"fmt"
	"net"
	"strings"
)

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals, f *BridgeFlags) error {
	if f.Listen != "" && !f.NoServer {
		if _, _, err := net.SplitHostPort(f.Listen); err != nil {
			return outputErrorCommon(globals, codeInvalidFlags, fmt.Sprintf("invalid --listen address %q", f.Listen), "use host:port, e.g. 127.0.0.1:24678")
		}
	}
	for _, ext := range f.Ext {
		if !strings.HasPrefix(ext, ".") {
			return outputErrorCommon(globals, codeInvalidFlags, fmt.Sprintf("extension %q must start with a dot", ext), "e.g. --ext .re,.ml")
		}
	}
	if f.ReconnectDelay < 0 {
		return outputErrorCommon(globals, codeInvalidFlags, "--reconnect-delay cannot be negative")
	}
	return nil
}
