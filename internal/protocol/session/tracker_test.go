package session

import (
	"testing"
	"time"

	"github.com/danmuck/msrpctl/internal/testutil/testlog"
)

func TestTrackerDualIndexStaysConsistent(t *testing.T) {
	testlog.Start(t)
	tr := NewTracker(true, 30*time.Second, nil)
	tr.Add(TransactionInfo{TransactionID: "tx-1", MessageID: "m-1"})
	tr.Add(TransactionInfo{TransactionID: "tx-2", MessageID: "m-1"})
	tr.Add(TransactionInfo{TransactionID: "tx-3", MessageID: "m-2"})

	if info, ok := tr.GetByMessageID("m-1"); !ok || info.TransactionID != "tx-2" {
		t.Fatalf("by message-id=%+v ok=%v", info, ok)
	}
	if !tr.Remove("tx-2") {
		t.Fatalf("remove tx-2")
	}
	if info, ok := tr.GetByMessageID("m-1"); !ok || info.TransactionID != "tx-1" {
		t.Fatalf("message-id should fall back to tx-1, got %+v ok=%v", info, ok)
	}
	if !tr.consistent() {
		t.Fatalf("index inconsistent after remove")
	}
	tr.Remove("tx-1")
	if _, ok := tr.GetByMessageID("m-1"); ok {
		t.Fatalf("dangling message-id entry")
	}
	if tr.Remove("tx-1") {
		t.Fatalf("double remove reported success")
	}
	if tr.Len() != 1 || !tr.consistent() {
		t.Fatalf("len=%d consistent=%v", tr.Len(), tr.consistent())
	}
}

func TestTrackerReAddReplacesIndexEntry(t *testing.T) {
	testlog.Start(t)
	tr := NewTracker(true, 30*time.Second, nil)
	tr.Add(TransactionInfo{TransactionID: "tx-1", MessageID: "m-1"})
	tr.Add(TransactionInfo{TransactionID: "tx-1", MessageID: "m-2"})
	if _, ok := tr.GetByMessageID("m-1"); ok {
		t.Fatalf("stale message-id entry after re-add")
	}
	if tr.Len() != 1 || !tr.consistent() {
		t.Fatalf("len=%d consistent=%v", tr.Len(), tr.consistent())
	}
}

func TestTrackerSweepExpiryBoundaries(t *testing.T) {
	testlog.Start(t)
	base := time.Unix(1700000000, 0)
	now := base
	tr := NewTracker(true, 30*time.Second, func() time.Time { return now })

	tr.Add(TransactionInfo{TransactionID: "at-limit", MessageID: "m", CreatedAt: base.Add(-30 * time.Second)})
	tr.Add(TransactionInfo{TransactionID: "young", MessageID: "m", CreatedAt: base.Add(-30*time.Second + time.Millisecond)})
	tr.Add(TransactionInfo{TransactionID: "future", MessageID: "f", CreatedAt: base.Add(time.Second)})

	if n := tr.Sweep(); n != 2 {
		t.Fatalf("evicted=%d", n)
	}
	if _, ok := tr.Get("young"); !ok {
		t.Fatalf("entry under the expiry window was purged")
	}
	if _, ok := tr.Get("at-limit"); ok {
		t.Fatalf("entry at the expiry window survived")
	}
	if _, ok := tr.GetByMessageID("f"); ok {
		t.Fatalf("negative-age entry survived")
	}
	if !tr.consistent() {
		t.Fatalf("index inconsistent after sweep")
	}

	now = base.Add(time.Millisecond)
	if n := tr.Sweep(); n != 1 || tr.Len() != 0 {
		t.Fatalf("evicted=%d len=%d", n, tr.Len())
	}
}

func TestTrackerDisabledIsNoop(t *testing.T) {
	testlog.Start(t)
	tr := NewTracker(false, 30*time.Second, nil)
	if tr.Enabled() {
		t.Fatalf("disabled tracker reports enabled")
	}
	tr.Add(TransactionInfo{TransactionID: "tx-1", MessageID: "m-1"})
	if _, ok := tr.Get("tx-1"); ok {
		t.Fatalf("disabled tracker stored an entry")
	}
	if tr.Len() != 0 || tr.Sweep() != 0 || tr.Remove("tx-1") {
		t.Fatalf("disabled tracker has state")
	}
}
