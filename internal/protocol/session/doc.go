// Package session owns the MSRP per-connection protocol state.
//
// Ownership boundary:
// - chunked SEND transmission with byte-range bookkeeping
// - transaction tracking (by transaction-id and message-id) with lazy expiry
// - response, REPORT and empty-chunk correlation (Waiter, ResponseBarrier, ReportBarrier)
// - reassembly of incoming chunks and ordered listener delivery
//
// The socket itself lives in internal/transport; Session only sees it through Connection.
package session
