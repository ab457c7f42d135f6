package source

import (
	"testing"
	"time"

	"bwgen/internal/config/schema"
)

func TestDefaultSource_Name(t *testing.T) {
	s := NewDefaultSource()
	if s.Name() != "defaults" {
		t.Errorf("Name() = %q, want %q", s.Name(), "defaults")
	}
	if s.Priority() != PriorityDefaults {
		t.Errorf("Priority() = %d, want %d", s.Priority(), PriorityDefaults)
	}
}

func TestDefaultSource_LoadInto(t *testing.T) {
	cfg := &schema.Root{}
	if err := NewDefaultSource().LoadInto(cfg); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}

	if !cfg.Server.Stream.Enabled || cfg.Server.Stream.Port != 9000 {
		t.Errorf("stream = %+v, want enabled on 9000", cfg.Server.Stream)
	}
	if cfg.Server.Stream.Protocol != schema.StreamProtocolTCP {
		t.Errorf("stream protocol = %q, want tcp", cfg.Server.Stream.Protocol)
	}
	if !cfg.Server.Stream.ErrorReply {
		t.Error("stream error_reply should default to true")
	}
	if cfg.Server.Stream.ReadTimeout != 30*time.Second {
		t.Errorf("read_timeout = %v, want 30s", cfg.Server.Stream.ReadTimeout)
	}
	if !cfg.Server.Datagram.Enabled || cfg.Server.Datagram.Port != 9001 {
		t.Errorf("datagram = %+v, want enabled on 9001", cfg.Server.Datagram)
	}
	if cfg.Payload.ChunkSize != 1024 || cfg.Payload.Filler != "X" {
		t.Errorf("payload = %+v, want 1024 byte chunks of X", cfg.Payload)
	}
	if len(cfg.Payload.Units) != 4 {
		t.Errorf("units = %v, want GB MB KB B", cfg.Payload.Units)
	}
	if cfg.Payload.DefaultUnit != "" {
		t.Errorf("default_unit = %q, want empty", cfg.Payload.DefaultUnit)
	}
	if cfg.HTTP.Enabled {
		t.Error("http should be disabled by default")
	}
	if cfg.Log.Level != schema.LogLevelInfo {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	a := GetDefaultConfig()
	b := GetDefaultConfig()
	a.Payload.Units[0] = "TB"
	if b.Payload.Units[0] != schema.UnitGB {
		t.Error("GetDefaultConfig() should return independent copies")
	}
}
