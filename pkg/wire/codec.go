// Package wire is the binary request/response encoding shared by the
// server and its clients. Integers are big-endian, strings and lists carry
// an int32 length prefix, times are int64 milliseconds and nullable values
// are preceded by a presence byte.
//
// Reader and Writer keep the first error and turn later calls into no-ops,
// so a handler can decode all fields and check Err once.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"codeuchat/pkg/ids"
)

const (
	MaxString = 1 << 20
	MaxList   = 1 << 16
)

var ErrTooLarge = errors.New("wire: length exceeds limit")

type Writer struct {
	w   *bufio.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Err() error { return w.err }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

func (w *Writer) Code(c Code) { w.Int32(int32(c)) }

func (w *Writer) Int32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.write(b[:])
}

func (w *Writer) Int64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.write(b[:])
}

func (w *Writer) ID(id ids.ID) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	w.write(b[:])
}

func (w *Writer) Byte(v byte) { w.write([]byte{v}) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func (w *Writer) Time(t time.Time) { w.Int64(t.UnixMilli()) }

func (w *Writer) Text(s string) {
	if len(s) > MaxString {
		if w.err == nil {
			w.err = ErrTooLarge
		}
		return
	}
	w.Int32(int32(len(s)))
	w.write([]byte(s))
}

type Reader struct {
	r   *bufio.Reader
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	_, r.err = io.ReadFull(r.r, p)
	return r.err == nil
}

func (r *Reader) Code() Code { return Code(r.Int32()) }

func (r *Reader) Int32() int32 {
	var b [4]byte
	if !r.read(b[:]) {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b[:]))
}

func (r *Reader) Int64() int64 {
	var b [8]byte
	if !r.read(b[:]) {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:]))
}

func (r *Reader) ID() ids.ID {
	var b [8]byte
	if !r.read(b[:]) {
		return ids.Null
	}
	return ids.ID(binary.BigEndian.Uint64(b[:]))
}

func (r *Reader) Byte() byte {
	var b [1]byte
	if !r.read(b[:]) {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool { return r.Byte() != 0 }

func (r *Reader) Time() time.Time {
	ms := r.Int64()
	if r.err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (r *Reader) Text() string {
	n := r.Int32()
	if r.err != nil {
		return ""
	}
	if n < 0 || n > MaxString {
		r.err = fmt.Errorf("%w: string of %d bytes", ErrTooLarge, n)
		return ""
	}
	b := make([]byte, n)
	if !r.read(b) {
		return ""
	}
	return string(b)
}

// WriteList writes a length-prefixed list.
func WriteList[T any](w *Writer, items []T, write func(*Writer, T)) {
	if len(items) > MaxList {
		if w.err == nil {
			w.err = ErrTooLarge
		}
		return
	}
	w.Int32(int32(len(items)))
	for _, it := range items {
		write(w, it)
	}
}

func ReadList[T any](r *Reader, read func(*Reader) T) []T {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 || n > MaxList {
		r.err = fmt.Errorf("%w: list of %d items", ErrTooLarge, n)
		return nil
	}
	out := make([]T, 0, n)
	for i := int32(0); i < n && r.err == nil; i++ {
		out = append(out, read(r))
	}
	if r.err != nil {
		return nil
	}
	return out
}

// WriteNullable writes a presence byte and, when v is non-nil, the value.
func WriteNullable[T any](w *Writer, v *T, write func(*Writer, T)) {
	w.Bool(v != nil)
	if v != nil {
		write(w, *v)
	}
}

func ReadNullable[T any](r *Reader, read func(*Reader) T) *T {
	if !r.Bool() {
		return nil
	}
	v := read(r)
	if r.err != nil {
		return nil
	}
	return &v
}

// Field helpers usable as list and nullable element codecs.

func WriteID(w *Writer, id ids.ID)     { w.ID(id) }
func ReadID(r *Reader) ids.ID          { return r.ID() }
func WriteByteValue(w *Writer, b byte) { w.Byte(b) }
func ReadByteValue(r *Reader) byte     { return r.Byte() }
