// Package protocol owns the MSRP wire contract.
//
// Ownership boundary:
// - error taxonomy shared by frame, transport and session
// - frame/header primitives (frame)
// - session state machine (session)
//
// Canonical references (consult before changes):
// - RFC 4975 (MSRP), sections 7 and 8
package protocol
