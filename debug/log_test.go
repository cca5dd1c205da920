package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogCategories(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("transport", "start tempo=%d", 120)
	Warn("connection", "lost %s", "Synth")

	out := buf.String()
	for _, want := range []string{"cat=transport", "start tempo=120", "level=warning", "lost Synth"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestDisabledLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	Disable()

	Log("transport", "ignored")
	if buf.Len() != 0 {
		t.Errorf("wrote %q while disabled", buf.String())
	}
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for range 10 {
		LogEvery(5, "tick", "fired")
	}
	if n := strings.Count(buf.String(), "fired"); n != 2 {
		t.Errorf("logged %d times, want 2", n)
	}
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")
	if err := EnableFile(path); err != nil {
		t.Fatal(err)
	}
	Log("test", "hello")
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("file contents %q", data)
	}
}
