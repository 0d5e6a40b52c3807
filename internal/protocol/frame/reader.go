package frame

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/msrpctl/internal/protocol"
)

// Limits constrains frame decode memory use.
type Limits struct {
	MaxLineBytes  int
	MaxScanBytes  int
	MaxChunkBytes int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxLineBytes:  8 * 1024,
		MaxScanBytes:  DefaultChunkSize,
		MaxChunkBytes: 16 * 1024 * 1024,
	}
}

// Reader turns an MSRP byte stream into frames.
type Reader struct {
	r      *bufio.Reader
	limits Limits
}

func NewReader(r io.Reader, limits Limits) *Reader {
	if limits.MaxLineBytes <= 0 {
		limits.MaxLineBytes = DefaultLimits().MaxLineBytes
	}
	if limits.MaxScanBytes <= 0 {
		limits.MaxScanBytes = DefaultLimits().MaxScanBytes
	}
	if limits.MaxChunkBytes <= 0 {
		limits.MaxChunkBytes = DefaultLimits().MaxChunkBytes
	}
	return &Reader{r: bufio.NewReaderSize(r, 16*1024), limits: limits}
}

// ReadFrame returns the next frame, or io.EOF when the stream ends between frames.
// Other failures wrap protocol.ErrNetwork or protocol.ErrPayload.
func (fr *Reader) ReadFrame() (Frame, error) {
	var line string
	for {
		var err error
		line, err = fr.readLine()
		if err != nil {
			if err == io.EOF {
				return Frame{}, io.EOF
			}
			return Frame{}, fr.midFrame("start-line", err)
		}
		if line != "" {
			break
		}
	}

	f, err := parseStartLine(line)
	if err != nil {
		return Frame{}, err
	}
	end := EndLine(f.TransactionID)

	for {
		line, err := fr.readLine()
		if err != nil {
			return Frame{}, fr.midFrame("headers", err)
		}
		if line == "" {
			if err := fr.readBody(&f, end); err != nil {
				return Frame{}, err
			}
			return f, nil
		}
		if strings.HasPrefix(line, end) {
			flag, err := parseFlag(line[len(end):])
			if err != nil {
				return Frame{}, err
			}
			f.Flag = flag
			if raw, ok := f.Headers.Get(HeaderByteRange); ok {
				if br, err := ParseByteRange(raw); err == nil {
					f.TotalSize = br.Total
				}
			}
			return f, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			return Frame{}, protocol.PayloadError("malformed header line %q", line)
		}
		f.Headers.Set(strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]))
	}
}

func parseStartLine(line string) (Frame, error) {
	fields := strings.Split(line, " ")
	if len(fields) < 3 || fields[0] != Tag {
		return Frame{}, protocol.PayloadError("not an MSRP start line %q", line)
	}
	if fields[1] == "" {
		return Frame{}, protocol.PayloadError("missing transaction id %q", line)
	}
	f := Frame{TransactionID: fields[1], TotalSize: -1}
	if code, err := strconv.Atoi(fields[2]); err == nil {
		f.Kind = KindResponse
		f.Status = code
		f.Comment = strings.Join(fields[3:], " ")
	} else {
		f.Kind = KindRequest
		f.Method = fields[2]
	}
	return f, nil
}

func parseFlag(rest string) (Flag, error) {
	if len(rest) != 1 || !Flag(rest[0]).Valid() {
		return 0, protocol.PayloadError("invalid continuation flag %q", rest)
	}
	return Flag(rest[0]), nil
}

func (fr *Reader) readBody(f *Frame, end string) error {
	raw, ok := f.Headers.Get(HeaderByteRange)
	if !ok {
		body, flag, err := fr.scanBody(end, fr.limits.MaxScanBytes)
		if err != nil {
			return err
		}
		f.Body, f.Flag, f.TotalSize = body, flag, int64(len(body))
		return nil
	}

	br, err := ParseByteRange(raw)
	if err != nil {
		return err
	}
	f.TotalSize = br.Total

	var body []byte
	var flag Flag
	switch size := br.ChunkSize(); {
	case size > 0:
		body, flag, err = fr.readSized(size, end)
	case size == 0:
		// Legacy: an empty declared chunk makes the declared total the scan buffer
		// length for this frame.
		limit := fr.limits.MaxScanBytes
		if br.Total >= 0 {
			limit = int(min(br.Total, fr.limits.MaxChunkBytes))
		}
		body, flag, err = fr.scanBody(end, limit)
	default:
		body, flag, err = fr.scanBody(end, fr.limits.MaxScanBytes)
	}
	if err != nil {
		return err
	}
	f.Body, f.Flag = body, flag
	return nil
}

// readSized reads exactly size body bytes, then the CRLF and the end-line.
func (fr *Reader) readSized(size int64, end string) ([]byte, Flag, error) {
	if size > fr.limits.MaxChunkBytes {
		return nil, 0, protocol.PayloadError("chunk of %d bytes exceeds limit %d", size, fr.limits.MaxChunkBytes)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return nil, 0, fr.midFrame("body", err)
	}
	line, err := fr.readLine()
	if err != nil {
		return nil, 0, fr.midFrame("body terminator", err)
	}
	if line != "" {
		return nil, 0, protocol.PayloadError("body longer than declared byte-range")
	}
	line, err = fr.readLine()
	if err != nil {
		return nil, 0, fr.midFrame("end-line", err)
	}
	if !strings.HasPrefix(line, end) {
		return nil, 0, protocol.PayloadError("expected end-line %q, got %q", end, line)
	}
	flag, err := parseFlag(line[len(end):])
	if err != nil {
		return nil, 0, err
	}
	return body, flag, nil
}

// scanBody reads byte by byte until the end-line marker. limit bounds the body length.
func (fr *Reader) scanBody(end string, limit int) ([]byte, Flag, error) {
	m := NewMatcher(end)
	buf := make([]byte, 0, min(limit, 64*1024)+len(end)+2)
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, 0, fr.midFrame("body scan", err)
		}
		buf = append(buf, b)
		if m.Feed(b) {
			break
		}
		if len(buf) > limit+len(end)+len(CRLF) {
			return nil, 0, protocol.PayloadError("no end-line within %d bytes", limit)
		}
	}
	body := bytes.TrimSuffix(buf[:len(buf)-m.Len()], []byte(CRLF))

	b, err := fr.r.ReadByte()
	if err != nil {
		return nil, 0, fr.midFrame("continuation flag", err)
	}
	flag := Flag(b)
	if !flag.Valid() {
		return nil, 0, protocol.PayloadError("invalid continuation flag %q", b)
	}
	line, err := fr.readLine()
	if err != nil {
		return nil, 0, fr.midFrame("end-line", err)
	}
	if line != "" {
		return nil, 0, protocol.PayloadError("trailing bytes after continuation flag %q", line)
	}
	return body, flag, nil
}

// readLine returns one line without its CRLF. io.EOF is returned only when nothing was read.
func (fr *Reader) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := fr.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > fr.limits.MaxLineBytes {
			return "", protocol.PayloadError("line exceeds %d bytes", fr.limits.MaxLineBytes)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(line) == 0 {
				return "", io.EOF
			}
			return "", io.ErrUnexpectedEOF
		}
		return "", protocol.NetworkError("read line", err)
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

func (fr *Reader) midFrame(stage string, err error) error {
	if errors.Is(err, protocol.ErrNetwork) || errors.Is(err, protocol.ErrPayload) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return protocol.PayloadError("unexpected end of stream in %s", stage)
	}
	return protocol.NetworkError("read "+stage, err)
}
