package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/danmuck/msrpctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordAdminRequest("msrpctl", "/health", 200, 12*time.Millisecond)
	RecordFrameReceived("request", "SEND")
	RecordFrameSent("queued", 128)
	RecordTransferError(protocol.ErrResponseTimeout)
	AddTrackedTransactions(2)
	AddTrackedTransactions(-2)
}

func TestErrorKind(t *testing.T) {
	testlog.Start(t)
	cases := map[string]error{
		"network":  protocol.NetworkError("write", errors.New("broken pipe")),
		"payload":  protocol.PayloadError("bad"),
		"timeout":  fmt.Errorf("chunk: %w", protocol.ErrResponseTimeout),
		"status":   &protocol.StatusError{Code: 481, Source: "response"},
		"internal": errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q want %q", err, got, want)
		}
	}
}
