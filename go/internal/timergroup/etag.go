package timergroup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
)

// ComputeETag derives a strong validator from the state tuple.
// Equal tuples give equal ETags; any field change gives a different one.
func ComputeETag(state models.TimerState) string {
	sum := sha256.Sum256([]byte(canonicalState(state)))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func canonicalState(s models.TimerState) string {
	var b strings.Builder
	b.WriteString("v1|")
	b.WriteString(string(s.Mode))
	b.WriteByte('|')
	writeTime(&b, s.EndAt)
	b.WriteByte('|')
	if s.DurationMs != nil {
		b.WriteString(strconv.FormatInt(*s.DurationMs, 10))
	} else {
		b.WriteByte('-')
	}
	b.WriteByte('|')
	writeTime(&b, s.PausedAt)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(s.UpdatedAt.UnixMilli(), 10))
	return b.String()
}

func writeTime(b *strings.Builder, t *time.Time) {
	if t == nil {
		b.WriteByte('-')
		return
	}
	b.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
}

// MatchesETag reports whether an If-None-Match header value matches etag.
// It accepts "*", comma-separated lists and weak validators.
func MatchesETag(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
