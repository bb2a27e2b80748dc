package recordings

import (
	"regexp"
	"testing"
	"time"
)

var storedName = regexp.MustCompile(`^[A-Za-z0-9_-]+_[0-9]+\.\w+$`)

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"":                  DefaultTitle,
		"   ":               DefaultTitle,
		"My Show":           "My_Show",
		"../../etc/passwd":  "_etc_passwd",
		`a\b/c`:             "a_b_c",
		"live-stream_01":    "live-stream_01",
		"héllo wörld!":      "h_llo_w_rld_",
		"semi;colon&amp":    "semi_colon_amp",
		"<script>x</script>": "_script_x_script_",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTitle_Truncates(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeTitle(string(long)); len(got) != maxTitleLen {
		t.Fatalf("len=%d, want %d", len(got), maxTitleLen)
	}
}

func TestFileName_MatchesSafePattern(t *testing.T) {
	titles := []string{"", "My Show", "../../etc/passwd", "a/b\\c d?e*f", "日本語", "-"}
	clock := NewClock(nil)
	for _, title := range titles {
		name := FileName(SanitizeTitle(title), clock.Next(), "webm")
		if !storedName.MatchString(name) {
			t.Errorf("FileName for %q=%q does not match %s", title, name, storedName)
		}
	}
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	clock := NewClock(func() time.Time { return fixed })

	seen := make(map[string]bool, 1000)
	var last int64
	for i := 0; i < 1000; i++ {
		ms := clock.Next()
		if ms <= last {
			t.Fatalf("Next()=%d after %d, want strictly increasing", ms, last)
		}
		last = ms

		name := FileName(SanitizeTitle("same title"), ms, "webm")
		if seen[name] {
			t.Fatalf("duplicate name %q at iteration %d", name, i)
		}
		seen[name] = true
	}
}

func TestClock_WallClockStepsBack(t *testing.T) {
	times := []int64{1000, 900, 900, 2000}
	i := 0
	clock := NewClock(func() time.Time {
		ms := times[i]
		i++
		return time.UnixMilli(ms)
	})

	want := []int64{1000, 1001, 1002, 2000}
	for _, w := range want {
		if got := clock.Next(); got != w {
			t.Fatalf("Next()=%d, want %d", got, w)
		}
	}
}

func TestParseFileName(t *testing.T) {
	title, createdAt, ext, ok := ParseFileName("My_Show_1700000000123.webm")
	if !ok {
		t.Fatalf("ParseFileName not ok")
	}
	if title != "My_Show" || ext != "webm" || createdAt.UnixMilli() != 1700000000123 {
		t.Fatalf("got title=%q ext=%q createdAt=%v", title, ext, createdAt)
	}

	for _, name := range []string{"plain.webm", "trailing_.webm", "_123.webm", "x_abc.webm"} {
		if _, _, _, ok := ParseFileName(name); ok {
			t.Errorf("ParseFileName(%q) ok, want not ok", name)
		}
	}
}
