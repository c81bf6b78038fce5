package utils

import (
	"fmt"
	"strings"
)

func BoolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		e = strings.TrimRight(e, "/")
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// NormalizeHex lowercases a hex string and guarantees a 0x prefix so entity
// keys compare equal regardless of how the upstream encoded them.
func NormalizeHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// AgentKey renders an integer agent token id as the fixed-width hex key used
// across the read model.
func AgentKey(id uint64) string {
	return fmt.Sprintf("0x%016x", id)
}
