package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

func TestRequestEncoding(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	at := time.UnixMilli(1500000000123)
	user := models.User{ID: 3, Name: "Zoë", Creation: at}
	msg := models.Message{ID: 9, Next: 10, Creation: at, Author: 3, Content: "multi word body"}

	w.Code(NewMessageResponse)
	WriteNullable(w, &msg, WriteMessage)
	WriteNullable[models.User](w, nil, WriteUser)
	WriteList(w, []models.User{user, user}, WriteUser)
	WriteList(w, []ids.ID{1, 2, 3}, WriteID)
	w.Bool(true)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	if code := r.Code(); code != NewMessageResponse {
		t.Fatalf("code = %s", code)
	}
	gotMsg := ReadNullable(r, ReadMessage)
	if gotMsg == nil || *gotMsg != msg {
		t.Fatalf("message = %+v, want %+v", gotMsg, msg)
	}
	if u := ReadNullable(r, ReadUser); u != nil {
		t.Fatalf("expected null user, got %+v", u)
	}
	users := ReadList(r, ReadUser)
	if len(users) != 2 || users[1] != user {
		t.Fatalf("users = %+v", users)
	}
	idl := ReadList(r, ReadID)
	if len(idl) != 3 || idl[2] != 3 {
		t.Fatalf("ids = %v", idl)
	}
	if !r.Bool() {
		t.Fatalf("bool lost")
	}
	if r.Err() != nil {
		t.Fatalf("reader error: %v", r.Err())
	}
}

func TestHeaderEncodingDropsRoles(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	h := models.NewConversationHeader(5, 3, time.UnixMilli(42), "room", models.ControlPublic)
	h.SetFlags(8, models.AccessOwner)
	WriteHeader(w, *h)
	w.Flush()

	got := ReadHeader(NewReader(&buf))
	if got.ID != 5 || got.Owner != 3 || got.Title != "room" || got.Control != models.ControlPublic {
		t.Fatalf("header = %+v", got)
	}
	if !got.Creation.Equal(h.Creation) {
		t.Fatalf("creation = %s", got.Creation)
	}
	if got.IsOwner(8) {
		t.Fatalf("roles should not travel on the wire")
	}
}

func TestReaderStickyErrors(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0}))
	if r.Int32() != 0 {
		t.Fatalf("short read returned value")
	}
	if !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v", r.Err())
	}
	if r.Text() != "" || r.ID() != ids.Null {
		t.Fatalf("reads after error returned data")
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Int32(-1)
	w.Flush()
	r = NewReader(&buf)
	if s := r.Text(); s != "" || !errors.Is(r.Err(), ErrTooLarge) {
		t.Fatalf("negative length accepted: %q %v", s, r.Err())
	}
}

func TestCodeNames(t *testing.T) {
	if CheckRemovedRequest.String() != "check_removed" {
		t.Fatalf("name = %s", CheckRemovedRequest)
	}
	if Code(999).String() != "unknown" {
		t.Fatalf("unknown code name = %s", Code(999))
	}
}
