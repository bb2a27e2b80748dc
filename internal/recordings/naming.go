package recordings

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTitle is used when an upload carries no usable title.
	DefaultTitle = "recording"

	maxTitleLen = 64
)

// SanitizeTitle maps an untrusted title onto [A-Za-z0-9_-]. Each run of other
// characters collapses into a single underscore.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}

	var b strings.Builder
	b.Grow(len(title))
	inRun := false
	for _, r := range title {
		if isSafe(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}

	out := b.String()
	if len(out) > maxTitleLen {
		out = out[:maxTitleLen]
	}
	return out
}

func isSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '-'
}

// Clock hands out millisecond timestamps that strictly increase, even when
// the wall clock stalls or steps backwards.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// FileName composes "{title}_{millis}.{ext}".
func FileName(title string, millis int64, ext string) string {
	return title + "_" + strconv.FormatInt(millis, 10) + "." + ext
}

// ParseFileName splits a stored name back into its parts. ok is false when
// the name does not carry a trailing millisecond timestamp.
func ParseFileName(name string) (title string, createdAt time.Time, ext string, ok bool) {
	ext = strings.TrimPrefix(filepath.Ext(name), ".")
	base := strings.TrimSuffix(name, filepath.Ext(name))

	i := strings.LastIndexByte(base, '_')
	if i <= 0 || i == len(base)-1 {
		return base, time.Time{}, ext, false
	}
	millis, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil || millis < 0 {
		return base, time.Time{}, ext, false
	}
	return base[:i], time.UnixMilli(millis), ext, true
}
