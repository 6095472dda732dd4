package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyPrefix = "lcm_"

// ScoreKey produces a deterministic key for one grading request. The
// model identity is part of the key so switching models never serves a
// stale grade.
func ScoreKey(provider, modelID, content, problem string) string {
	h := sha256.New()
	for _, part := range []string{provider, modelID, problem, content} {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write([]byte(part))
	}
	hash := hex.EncodeToString(h.Sum(nil))
	return keyPrefix + sanitizeModelID(modelID) + "_" + hash[:16]
}

// sanitizeModelID keeps keys readable in storage and logs.
func sanitizeModelID(modelID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, modelID)
}
