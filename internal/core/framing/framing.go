// Package framing implements the length-prefixed record stream used for query
// responses and for the persisted cache snapshot.
//
// A stream is a flat sequence of records. Each record is a 2-byte big-endian
// unsigned length N followed by exactly N bytes of UTF-8 path text. There is
// no envelope, count or terminator.
package framing

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"unicode/utf8"

	"go.trai.ch/locus/internal/core/domain"
)

const (
	// PrefixSize is the size of the length prefix in bytes.
	PrefixSize = 2

	// MaxPayload is the largest payload a single record can carry.
	MaxPayload = math.MaxUint16
)

// EncodeError reports a path that cannot be framed.
type EncodeError struct {
	Path string
	Size int
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s: %s (%d bytes)", domain.ErrEncode.Error(), e.Err.Error(), e.Size)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Is reports every encode error as domain.ErrEncode.
func (e *EncodeError) Is(target error) bool {
	return target == domain.ErrEncode
}

// DecodeError reports malformed input at a byte offset.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d", domain.ErrDecode.Error(), e.Err.Error(), e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports every decode error as domain.ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == domain.ErrDecode
}

// Append frames path and appends the record to dst.
func Append(dst []byte, path string) ([]byte, error) {
	if len(path) > MaxPayload {
		return dst, &EncodeError{Path: path, Size: len(path), Err: domain.ErrRecordTooLarge}
	}
	if !utf8.ValidString(path) {
		return dst, &EncodeError{Path: path, Size: len(path), Err: domain.ErrRecordNotUTF8}
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(path)))
	return append(dst, path...), nil
}

// Encode frames every path in order.
func Encode(paths []string) ([]byte, error) {
	size := 0
	for _, p := range paths {
		size += PrefixSize + len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range paths {
		var err error
		if out, err = Append(out, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeServices frames the path of every service in order.
func EncodeServices(services []domain.Service) ([]byte, error) {
	paths := make([]string, len(services))
	for i, s := range services {
		paths[i] = s.Path
	}
	return Encode(paths)
}

// Records iterates the records of buf in order.
// Iteration stops after the first error.
func Records(buf []byte) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		offset := 0
		for offset < len(buf) {
			if len(buf)-offset < PrefixSize {
				yield("", &DecodeError{Offset: offset, Err: domain.ErrTruncatedPrefix})
				return
			}
			n := int(binary.BigEndian.Uint16(buf[offset:]))
			start := offset + PrefixSize
			if len(buf)-start < n {
				yield("", &DecodeError{Offset: offset, Err: domain.ErrTruncatedPayload})
				return
			}
			payload := buf[start : start+n]
			if !utf8.Valid(payload) {
				yield("", &DecodeError{Offset: offset, Err: domain.ErrInvalidUTF8})
				return
			}
			if !yield(string(payload), nil) {
				return
			}
			offset = start + n
		}
	}
}

// Decode returns every record of buf. A malformed buffer yields no partial result.
func Decode(buf []byte) ([]string, error) {
	var paths []string
	for path, err := range Records(buf) {
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// DecodeServices returns every record of buf as a service.
func DecodeServices(buf []byte) ([]domain.Service, error) {
	paths, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return domain.NewServices(paths), nil
}
