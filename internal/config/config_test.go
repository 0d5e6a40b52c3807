package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/msrpctl/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "msrpctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultSettings()
	if got.Endpoint != def.Endpoint || got.Session != def.Session || got.Transport != def.Transport {
		t.Fatalf("template drifted from defaults:\n%+v\n%+v", got, def)
	}
	if len(got.Admin.CorsOrigins) != 1 {
		t.Fatalf("cors origins=%v", got.Admin.CorsOrigins)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	s, err := ParseSettings([]byte(`
[session]
success_report = true
response_timeout = "750ms"

[tls]
enabled = true
ca_file = "ca.pem"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sc := s.SessionConfig()
	if !sc.SuccessReport || sc.ResponseTimeout != 750*time.Millisecond {
		t.Fatalf("session config=%+v", sc)
	}
	if sc.ChunkSize != 10*1024 || sc.TransactionExpiry != 30*time.Second || sc.DisableTracking {
		t.Fatalf("defaults lost: %+v", sc)
	}
	tc := s.TransportConfig()
	if !tc.TLS.Enabled || tc.TLS.CAFile != "ca.pem" || tc.WriteTimeout != 15*time.Second {
		t.Fatalf("transport config=%+v", tc)
	}
	if tc.Limits.MaxScanBytes <= 0 {
		t.Fatalf("limits not defaulted: %+v", tc.Limits)
	}
}

func TestManagerConfigCarriesEndpoint(t *testing.T) {
	testlog.Start(t)
	s, err := ParseSettings([]byte(`
[endpoint]
host = "::1"
port = 7000
session_id = "abc"
secured = true

[backoff]
initial_delay = "1s"
jitter = false
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mc := s.ManagerConfig()
	if mc.LocalHost != "::1" || mc.LocalPort != 7000 || mc.SessionID != "abc" || !mc.Secured {
		t.Fatalf("manager config=%+v", mc)
	}
	if !mc.Transport.TLS.Enabled {
		t.Fatalf("secured endpoint must enable tls")
	}
	if mc.Backoff.InitialDelay != time.Second || mc.Backoff.Jitter || mc.Backoff.Multiplier != 2.0 {
		t.Fatalf("backoff=%+v", mc.Backoff)
	}
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)
	cases := map[string]struct {
		doc  string
		want error
	}{
		"empty host":    {doc: "[endpoint]\nhost = \" \"\n", want: ErrHostRequired},
		"bad port":      {doc: "[endpoint]\nport = 70000\n", want: ErrInvalidPort},
		"zero chunk":    {doc: "[session]\nchunk_size = 0\n", want: ErrInvalidChunkSize},
		"zero queue":    {doc: "[session]\nlistener_queue_depth = 0\n", want: ErrInvalidQueueDepth},
		"negative wait": {doc: "[transport]\nwrite_timeout = \"-1s\"\n", want: ErrInvalidTimeout},
		"bad level":     {doc: "[log]\nlevel = \"loud\"\n", want: ErrInvalidLogLevel},
	}
	for name, tc := range cases {
		if _, err := ParseSettings([]byte(tc.doc)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want=%v", name, err, tc.want)
		}
	}
}

func TestBadDurationFailsParse(t *testing.T) {
	testlog.Start(t)
	_, err := ParseSettings([]byte("[session]\nresponse_timeout = \"soon\"\n"))
	if err == nil || !strings.Contains(err.Error(), "config parse failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	testlog.Start(t)
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}

func TestLogConfig(t *testing.T) {
	testlog.Start(t)
	s := DefaultSettings()
	s.Log.Level = "debug"
	s.Log.File = "/tmp/msrpctl.log"
	lc := s.LogConfig()
	if lc.Level != zerolog.DebugLevel || lc.File != "/tmp/msrpctl.log" || !lc.Timestamp {
		t.Fatalf("log config=%+v", lc)
	}
}
