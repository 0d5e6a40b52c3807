package frame

import (
	"bytes"
	"io"
	"strconv"
)

// Encode renders the frame in wire form. A nil Body omits the body section entirely.
func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(256 + len(f.Body))

	buf.WriteString(Tag)
	buf.WriteByte(' ')
	buf.WriteString(f.TransactionID)
	buf.WriteByte(' ')
	if f.Kind == KindResponse {
		buf.WriteString(strconv.Itoa(f.Status))
		if f.Comment != "" {
			buf.WriteByte(' ')
			buf.WriteString(f.Comment)
		}
	} else {
		buf.WriteString(f.Method)
	}
	buf.WriteString(CRLF)

	for _, name := range f.Headers.names {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(f.Headers.values[name])
		buf.WriteString(CRLF)
	}

	if f.Body != nil {
		buf.WriteString(CRLF)
		buf.Write(f.Body)
		buf.WriteString(CRLF)
	}

	flag := f.Flag
	if flag == 0 {
		flag = FlagEnd
	}
	buf.WriteString(EndLine(f.TransactionID))
	buf.WriteByte(byte(flag))
	buf.WriteString(CRLF)
	return buf.Bytes()
}

func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(f.Encode())
	return err
}

// NewSend builds a SEND request. Headers are written in the order given.
func NewSend(txID string, headers Headers, body []byte, flag Flag) Frame {
	return Frame{
		TransactionID: txID,
		Kind:          KindRequest,
		Method:        MethodSend,
		Headers:       headers,
		Body:          body,
		Flag:          flag,
	}
}

// NewResponse answers a request, swapping its To-Path and From-Path.
func NewResponse(txID string, code int, comment string, req Headers) Frame {
	var h Headers
	h.Set(HeaderToPath, req.Value(HeaderFromPath))
	h.Set(HeaderFromPath, req.Value(HeaderToPath))
	return Frame{
		TransactionID: txID,
		Kind:          KindResponse,
		Status:        code,
		Comment:       comment,
		Headers:       h,
		Flag:          FlagEnd,
	}
}

// NewReport builds a REPORT request for the message carried by req.
func NewReport(txID string, req Headers, br ByteRange, code int, comment string) Frame {
	var h Headers
	h.Set(HeaderToPath, req.Value(HeaderFromPath))
	h.Set(HeaderFromPath, req.Value(HeaderToPath))
	h.Set(HeaderMessageID, req.Value(HeaderMessageID))
	h.Set(HeaderByteRange, br.String())
	h.Set(HeaderStatus, FormatStatus(code, comment))
	return Frame{
		TransactionID: txID,
		Kind:          KindRequest,
		Method:        MethodReport,
		Headers:       h,
		Flag:          FlagEnd,
	}
}
