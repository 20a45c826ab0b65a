package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	if got := New("debug", "text").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	if got := New("nonsense", "text").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", got)
	}
}

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("info", "json", &buf)
	l.WithField("pair_id", "pair_1").Info("nudged")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["pair_id"] != "pair_1" {
		t.Errorf("pair_id = %v, want pair_1", entry["pair_id"])
	}
}

func TestNewWithOutput_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("info", "text", &buf)
	l.Debug("hidden")
	l.Info("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info line missing")
	}
}
