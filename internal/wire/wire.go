// Package wire implements the length-prefixed message framing and the
// command syntax shared by the gateway, the server, and every client.
//
// A message on the wire is the decimal byte length of the payload, a '|'
// separator, and the payload itself: "9|PMINFO_42". The payload of a request
// is a command: a two-letter category, a four-letter action, and a list of
// '_'-separated arguments. Arguments that contain a literal underscore are
// transmitted with tabs in their place and unescaped by the receiver.
package wire

import (
	"fmt"
	"io"
	"strconv"
)

// Reply sentinels shared by all dispatchers. The protocol has no structured
// error envelope; these strings are the entire failure vocabulary.
const (
	ReplyInvalid       = "-1"
	ReplyUnknownAccess = "-2"
)

// maxHeaderDigits bounds the length header so a malicious peer cannot make
// the reader accumulate digits forever. 20 digits is already beyond any
// payload this system produces.
const maxHeaderDigits = 20

// ProtocolError reports a malformed frame. It is fatal to the connection it
// occurred on and never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "wire: " + e.Reason
}

// Encode frames a payload for transmission. The length is measured in bytes,
// the same unit the receiver counts in, so payloads may contain arbitrary
// bytes including '|' and digits.
func Encode(payload []byte) []byte {
	header := strconv.Itoa(len(payload))
	buf := make([]byte, 0, len(header)+1+len(payload))
	buf = append(buf, header...)
	buf = append(buf, '|')
	buf = append(buf, payload...)
	return buf
}

// WriteMessage frames payload and writes it to w in a single call.
func WriteMessage(w io.Writer, payload []byte) error {
	if _, err := w.Write(Encode(payload)); err != nil {
		return fmt.Errorf("wire: write message: %w", err)
	}
	return nil
}

// WriteString frames a string reply and writes it to w.
func WriteString(w io.Writer, payload string) error {
	return WriteMessage(w, []byte(payload))
}

// ReadMessage reads one framed message from r. The header is read one byte
// at a time until the '|' separator; the payload is then read until exactly
// the advertised number of bytes has arrived, regardless of how the sender
// chunked it. A zero-length payload is valid. EOF before a complete frame is
// returned as the underlying read error, never as an empty message.
func ReadMessage(r io.Reader) ([]byte, error) {
	length, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("wire: read payload: %w", err)
	}
	return payload, nil
}

// ReadString reads one framed message and returns the payload as a string.
func ReadString(r io.Reader) (string, error) {
	payload, err := ReadMessage(r)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func readHeader(r io.Reader) (int, error) {
	var digits []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF && len(digits) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, fmt.Errorf("wire: read header: %w", err)
		}
		b := buf[0]
		if b == '|' {
			break
		}
		if b < '0' || b > '9' {
			return 0, &ProtocolError{Reason: fmt.Sprintf("non-digit byte %q in length header", b)}
		}
		digits = append(digits, b)
		if len(digits) > maxHeaderDigits {
			return 0, &ProtocolError{Reason: "length header too long"}
		}
	}
	if len(digits) == 0 {
		return 0, &ProtocolError{Reason: "empty length header"}
	}
	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, &ProtocolError{Reason: "unparseable length header"}
	}
	return length, nil
}
