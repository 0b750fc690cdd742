// Package identity derives a node's human-readable identity string and, from
// it, a deterministic node_id: NODE_NAME overrides the derived identity;
// NODE_ID overrides the derived node id and must lie in [1, 15].
package identity

import (
	"errors"
	"hash/fnv"
	"net"
	"os"
	"strconv"
)

// ErrNodeIDRange is returned when NODE_ID is set but out of [1, 15].
var ErrNodeIDRange = errors.New("identity: NODE_ID must be in [1, 15]")

// Derive returns the node's identity string and node id, honoring NODE_NAME
// and NODE_ID overrides.
func Derive() (string, uint32, error) {
	name := deriveName()
	id, err := deriveNodeID(name)
	if err != nil {
		return "", 0, err
	}
	return name, id, nil
}

func deriveName() string {
	if name := os.Getenv("NODE_NAME"); name != "" {
		return name
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if mac := firstMAC(); mac != "" {
		return mac
	}
	return "node"
}

func firstMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}

func deriveNodeID(name string) (uint32, error) {
	if raw := os.Getenv("NODE_ID"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 15 {
			return 0, ErrNodeIDRange
		}
		return uint32(n), nil
	}
	return hashToNodeID(name), nil
}

// hashToNodeID hashes name with FNV-1a and folds it into [1, 15] so a
// derived id never collides with the reserved invalid/zero id.
func hashToNodeID(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return (h.Sum32() % 15) + 1
}
