package config

import (
	"fmt"
	"os"
)

func Template() string {
	return settingsTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(settingsTemplate), 0o600)
}

const settingsTemplate = `[endpoint]
host = "127.0.0.1"
port = 2855
secured = false
max_connect_attempts = 3

[session]
failure_report = false
success_report = false
response_timeout = "5s"
chunk_size = 10240
transaction_expiry = "30s"
tracking = true
listener_queue_depth = 64

[transport]
connect_timeout = "10s"
accept_timeout = "10s"
handshake_timeout = "5s"
write_timeout = "15s"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""

[backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true

[log]
level = "info"
timestamp = true

[admin]
addr = "127.0.0.1:9280"
cors_origins = ["http://localhost:3000"]
token = ""
`
