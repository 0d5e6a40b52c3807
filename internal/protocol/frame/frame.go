package frame

import (
	"strconv"
	"strings"

	"github.com/danmuck/msrpctl/internal/protocol"
)

const (
	Tag       = "MSRP"
	EndPrefix = "-------"
	CRLF      = "\r\n"

	MethodSend   = "SEND"
	MethodReport = "REPORT"

	HeaderToPath        = "To-Path"
	HeaderFromPath      = "From-Path"
	HeaderMessageID     = "Message-ID"
	HeaderByteRange     = "Byte-Range"
	HeaderFailureReport = "Failure-Report"
	HeaderSuccessReport = "Success-Report"
	HeaderContentType   = "Content-Type"
	HeaderStatus        = "Status"

	StatusOK      = 200
	StatusComment = "OK"

	// DefaultChunkSize bounds one outgoing chunk and the tag-scan buffer.
	DefaultChunkSize = 10 * 1024
)

// Kind separates requests from responses on the first line.
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
)

func (k Kind) String() string {
	if k == KindResponse {
		return "response"
	}
	return "request"
}

// Flag is the continuation byte that follows the end-line marker.
type Flag byte

const (
	FlagEnd   Flag = '$'
	FlagMore  Flag = '+'
	FlagAbort Flag = '#'
)

func (f Flag) Valid() bool {
	return f == FlagEnd || f == FlagMore || f == FlagAbort
}

func (f Flag) String() string {
	switch f {
	case FlagEnd:
		return "end"
	case FlagMore:
		return "more"
	case FlagAbort:
		return "abort"
	default:
		return "invalid"
	}
}

// Frame is one parsed or to-be-encoded MSRP request or response.
type Frame struct {
	TransactionID string
	Kind          Kind
	Method        string
	Status        int
	Comment       string
	Headers       Headers
	Body          []byte
	Flag          Flag
	TotalSize     int64
}

// EndLine returns the end-line marker for a transaction, without the flag.
func EndLine(txID string) string {
	return EndPrefix + txID
}

// Headers is an insertion-ordered header set. Names are case-sensitive and unique.
type Headers struct {
	names  []string
	values map[string]string
}

func (h *Headers) Set(name, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = value
}

func (h Headers) Get(name string) (string, bool) {
	v, ok := h.values[name]
	return v, ok
}

// Value returns the header value or "" when absent.
func (h Headers) Value(name string) string {
	return h.values[name]
}

func (h Headers) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

func (h Headers) Len() int {
	return len(h.names)
}

// ReportRequested reports whether a Failure-Report/Success-Report style header asks for a report.
// An absent header falls back to def.
func (h Headers) ReportRequested(name string, def bool) bool {
	v, ok := h.values[name]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "no":
		return false
	case "yes", "partial":
		return true
	default:
		return def
	}
}

// ByteRange is the decoded `first-last/total` header. Unknown values (`*`) decode as -1.
type ByteRange struct {
	First int64
	Last  int64
	Total int64
}

func ParseByteRange(raw string) (ByteRange, error) {
	raw = strings.TrimSpace(raw)
	dash := strings.IndexByte(raw, '-')
	slash := strings.IndexByte(raw, '/')
	if dash <= 0 || slash < dash {
		return ByteRange{}, protocol.PayloadError("invalid byte-range %q", raw)
	}
	first, err := strconv.ParseInt(raw[:dash], 10, 64)
	if err != nil || first < 0 {
		return ByteRange{}, protocol.PayloadError("invalid byte-range start %q", raw)
	}
	last, err := parseRangeValue(raw[dash+1 : slash])
	if err != nil {
		return ByteRange{}, protocol.PayloadError("invalid byte-range end %q", raw)
	}
	total, err := parseRangeValue(raw[slash+1:])
	if err != nil {
		return ByteRange{}, protocol.PayloadError("invalid byte-range total %q", raw)
	}
	return ByteRange{First: first, Last: last, Total: total}, nil
}

func parseRangeValue(v string) (int64, error) {
	if v == "*" {
		return -1, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// ChunkSize is the number of body bytes the range declares: 0 for an empty range and -1 when
// the last byte is unknown.
func (r ByteRange) ChunkSize() int64 {
	if r.Last < 0 {
		return -1
	}
	if r.Total == 0 || r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

func (r ByteRange) String() string {
	return strconv.FormatInt(r.First, 10) + "-" + formatRangeValue(r.Last) + "/" + formatRangeValue(r.Total)
}

func formatRangeValue(v int64) string {
	if v < 0 {
		return "*"
	}
	return strconv.FormatInt(v, 10)
}

// ParseStatus decodes a Status header (`000 200 OK`) into its status code.
func ParseStatus(raw string) (int, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return 0, protocol.PayloadError("invalid status %q", raw)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, protocol.PayloadError("invalid status code %q", raw)
	}
	return code, nil
}

// FormatStatus builds a Status header value in the `000` namespace.
func FormatStatus(code int, comment string) string {
	s := "000 " + strconv.Itoa(code)
	if comment != "" {
		s += " " + comment
	}
	return s
}
