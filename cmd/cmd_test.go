package cmd

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func run(args ...string) error {
	RootCmd.SetOut(io.Discard)
	RootCmd.SetErr(io.Discard)
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

func TestSendArgs(t *testing.T) {
	tests := [][]string{
		{"send"},
		{"send", "localhost", "9000", "in.txt"},
		{"send", "localhost", "9000", "in.txt", "out.txt", "extra"},
	}
	for _, args := range tests {
		if err := run(args...); err == nil {
			t.Errorf("%v: expected usage error", args)
		}
	}
}

func TestSendInvalidInput(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")
	tests := [][]string{
		{"send", "localhost", "port", missing, "out.txt"},
		{"send", "localhost", "9000", missing, "out.txt"},
		{"send", "--packet-size", "8", "localhost", "9000", missing, "out.txt"},
	}
	for _, args := range tests {
		if err := run(args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestInitConfigFlags(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")
	run("send", "--log-level", "debug", "--drop-rate", "0.5", "--packet-size", "1 << 9", "localhost", "9000", missing, "out.txt")
	if conf == nil {
		t.Fatalf("config not loaded")
	}
	if conf.PacketSize != 512 || conf.Transport.DropRate != 0.5 {
		t.Errorf("flags not applied: %+v", conf)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("log level %v", logger.GetLevel())
	}
}
