package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{name: "default", level: "", want: logrus.InfoLevel},
		{name: "debug", level: "debug", want: logrus.DebugLevel},
		{name: "warning", level: "warn", want: logrus.WarnLevel},
		{name: "invalid", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, closer, err := New(Options{Level: tt.level, Output: &bytes.Buffer{}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer closer.Close()
			if log.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Output: &buf, NoColors: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()

	log.WithField("backend", "yunet").Info("detector loaded")
	log.Debug("hidden at info level")

	out := buf.String()
	if !strings.Contains(out, "detector loaded") || !strings.Contains(out, "yunet") {
		t.Errorf("output %q missing message or field", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry written at info level: %q", out)
	}
}

func TestNew_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "eyetrack.log")
	log, closer, err := New(Options{Output: &bytes.Buffer{}, File: file, NoColors: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Warn("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// A closed lumberjack logger reopens on the next write.
	log.Warn("written after close")
	if err := closer.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"written to file", "written after close"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file %q missing %q", data, want)
		}
	}
}

func TestNew_CloseWithoutFile(t *testing.T) {
	_, closer, err := New(Options{Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() without a file error = %v", err)
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing to see")
}
