// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package ipc

import (
	"encoding/binary"
	"io"

	"github.com/gogo/protobuf/proto"
	"github.com/zeebo/errs"
)

// Error is the ipc package's error class.
var Error = errs.Class("ipc error")

// Encode marshals msg via proto.Marshal (which, for these hand-written
// types, resolves to their own Marshal method below) and returns the
// kind byte to frame it with.
func Encode(msg proto.Message) (Kind, []byte, error) {
	var kind Kind
	switch msg.(type) {
	case *AuthCookieRequest:
		kind = KindAuthCookieRequest
	case *AuthCookieReply:
		kind = KindAuthCookieReply
	case *SecAuthInit:
		kind = KindSecAuthInit
	case *SecAuthCont:
		kind = KindSecAuthCont
	case *SecAuthReply:
		kind = KindSecAuthReply
	default:
		return 0, nil, Error.New("unknown message type %T", msg)
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return 0, nil, Error.Wrap(err)
	}
	return kind, data, nil
}

// Decode allocates the message for kind and unmarshals data into it via
// proto.Unmarshal.
func Decode(kind Kind, data []byte) (proto.Message, error) {
	var msg proto.Message
	switch kind {
	case KindAuthCookieRequest:
		msg = &AuthCookieRequest{}
	case KindAuthCookieReply:
		msg = &AuthCookieReply{}
	case KindSecAuthInit:
		msg = &SecAuthInit{}
	case KindSecAuthCont:
		msg = &SecAuthCont{}
	case KindSecAuthReply:
		msg = &SecAuthReply{}
	default:
		return nil, Error.New("unknown message kind %d", kind)
	}

	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, Error.Wrap(err)
	}
	return msg, nil
}

// --- binary encoding primitives ---
//
// A minimal length-prefixed encoding: fields are written in a fixed order
// with no type tags, byte strings as a uvarint length followed by the
// bytes. component D's contract is the
// field set, not a particular wire format (spec.md §4.4), so this stays
// deliberately simple rather than reproducing a full protobuf encoder.

type wireWriter struct {
	buf []byte
}

func (w *wireWriter) bytes(b []byte) {
	var length [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(length[:], uint64(len(b)))
	w.buf = append(w.buf, length[:n]...)
	w.buf = append(w.buf, b...)
}

func (w *wireWriter) str(s string) { w.bytes([]byte(s)) }

func (w *wireWriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *wireWriter) boolean(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *wireWriter) strs(ss []string) {
	w.u32(uint32(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}

type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) bytes() ([]byte, error) {
	length, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return nil, io.ErrUnexpectedEOF
	}
	r.off += n
	if r.off+int(length) > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+int(length)]
	r.off += int(length)
	return b, nil
}

func (r *wireReader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *wireReader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *wireReader) boolean() (bool, error) {
	if r.off+1 > len(r.buf) {
		return false, io.ErrUnexpectedEOF
	}
	v := r.buf[r.off] != 0
	r.off++
	return v, nil
}

func (r *wireReader) strs() ([]string, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = r.str()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// --- Marshaler/Unmarshaler implementations ---
// These satisfy github.com/gogo/protobuf/proto's fast-path interfaces,
// so proto.Marshal/proto.Unmarshal call straight into them instead of
// falling back to struct-tag reflection (which these hand-written types
// don't carry).

// Marshal encodes an AuthCookieRequest.
func (m *AuthCookieRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	w.bytes(m.Cookie)
	w.boolean(m.TLSAuthOK)
	return w.buf, nil
}

// Unmarshal decodes an AuthCookieRequest.
func (m *AuthCookieRequest) Unmarshal(data []byte) error {
	r := &wireReader{buf: data}
	var err error
	if m.Cookie, err = r.bytes(); err != nil {
		return err
	}
	if m.TLSAuthOK, err = r.boolean(); err != nil {
		return err
	}
	return nil
}

// Marshal encodes an AuthCookieReply.
func (m *AuthCookieReply) Marshal() ([]byte, error) {
	w := &wireWriter{}
	w.buf = append(w.buf, byte(m.Reply))
	w.str(m.VName)
	w.str(m.UserName)
	w.str(m.GroupName)
	w.bytes(m.SessionID)
	w.str(m.IPv4)
	w.str(m.IPv6)
	w.str(m.IPv4Local)
	w.str(m.IPv6Local)
	w.str(m.IPv4Netmask)
	w.str(m.IPv6Netmask)
	w.u32(m.IPv6Prefix)
	w.boolean(m.HasRxPerSec)
	w.u32(m.RxPerSec)
	w.boolean(m.HasTxPerSec)
	w.u32(m.TxPerSec)
	w.boolean(m.HasNetPriority)
	w.u32(m.NetPriority)
	w.boolean(m.HasNoUDP)
	w.boolean(m.NoUDP)
	w.strs(m.Routes)
	w.strs(m.DNS)
	w.strs(m.NBNS)
	return w.buf, nil
}

// Unmarshal decodes an AuthCookieReply.
func (m *AuthCookieReply) Unmarshal(data []byte) error {
	r := &wireReader{buf: data}
	if len(r.buf) == 0 {
		return io.ErrUnexpectedEOF
	}
	m.Reply = ReplyKind(r.buf[r.off])
	r.off++
	var err error
	if m.VName, err = r.str(); err != nil {
		return err
	}
	if m.UserName, err = r.str(); err != nil {
		return err
	}
	if m.GroupName, err = r.str(); err != nil {
		return err
	}
	if m.SessionID, err = r.bytes(); err != nil {
		return err
	}
	if m.IPv4, err = r.str(); err != nil {
		return err
	}
	if m.IPv6, err = r.str(); err != nil {
		return err
	}
	if m.IPv4Local, err = r.str(); err != nil {
		return err
	}
	if m.IPv6Local, err = r.str(); err != nil {
		return err
	}
	if m.IPv4Netmask, err = r.str(); err != nil {
		return err
	}
	if m.IPv6Netmask, err = r.str(); err != nil {
		return err
	}
	if m.IPv6Prefix, err = r.u32(); err != nil {
		return err
	}
	if m.HasRxPerSec, err = r.boolean(); err != nil {
		return err
	}
	if m.RxPerSec, err = r.u32(); err != nil {
		return err
	}
	if m.HasTxPerSec, err = r.boolean(); err != nil {
		return err
	}
	if m.TxPerSec, err = r.u32(); err != nil {
		return err
	}
	if m.HasNetPriority, err = r.boolean(); err != nil {
		return err
	}
	if m.NetPriority, err = r.u32(); err != nil {
		return err
	}
	if m.HasNoUDP, err = r.boolean(); err != nil {
		return err
	}
	if m.NoUDP, err = r.boolean(); err != nil {
		return err
	}
	if m.Routes, err = r.strs(); err != nil {
		return err
	}
	if m.DNS, err = r.strs(); err != nil {
		return err
	}
	if m.NBNS, err = r.strs(); err != nil {
		return err
	}
	return nil
}

// Marshal encodes a SecAuthInit.
func (m *SecAuthInit) Marshal() ([]byte, error) {
	w := &wireWriter{}
	w.str(m.UserName)
	w.str(m.GroupName)
	w.str(m.Hostname)
	w.str(m.IP)
	w.boolean(m.TLSAuthOK)
	w.str(m.CertUserName)
	w.strs(m.CertGroupNames)
	return w.buf, nil
}

// Unmarshal decodes a SecAuthInit.
func (m *SecAuthInit) Unmarshal(data []byte) error {
	r := &wireReader{buf: data}
	var err error
	if m.UserName, err = r.str(); err != nil {
		return err
	}
	if m.GroupName, err = r.str(); err != nil {
		return err
	}
	if m.Hostname, err = r.str(); err != nil {
		return err
	}
	if m.IP, err = r.str(); err != nil {
		return err
	}
	if m.TLSAuthOK, err = r.boolean(); err != nil {
		return err
	}
	if m.CertUserName, err = r.str(); err != nil {
		return err
	}
	if m.CertGroupNames, err = r.strs(); err != nil {
		return err
	}
	return nil
}

// Marshal encodes a SecAuthCont.
func (m *SecAuthCont) Marshal() ([]byte, error) {
	w := &wireWriter{}
	w.str(m.Password)
	w.boolean(m.HasSID)
	w.bytes(m.SID)
	return w.buf, nil
}

// Unmarshal decodes a SecAuthCont.
func (m *SecAuthCont) Unmarshal(data []byte) error {
	r := &wireReader{buf: data}
	var err error
	if m.Password, err = r.str(); err != nil {
		return err
	}
	if m.HasSID, err = r.boolean(); err != nil {
		return err
	}
	if m.SID, err = r.bytes(); err != nil {
		return err
	}
	return nil
}

// Marshal encodes a SecAuthReply.
func (m *SecAuthReply) Marshal() ([]byte, error) {
	w := &wireWriter{}
	w.buf = append(w.buf, byte(m.Reply))
	w.str(m.Msg)
	w.boolean(m.HasSID)
	w.bytes(m.SID)
	w.boolean(m.HasCookie)
	w.bytes(m.Cookie)
	w.bytes(m.DTLSSessionID)
	w.str(m.UserName)
	return w.buf, nil
}

// Unmarshal decodes a SecAuthReply.
func (m *SecAuthReply) Unmarshal(data []byte) error {
	r := &wireReader{buf: data}
	if len(r.buf) == 0 {
		return io.ErrUnexpectedEOF
	}
	m.Reply = ReplyKind(r.buf[r.off])
	r.off++
	var err error
	if m.Msg, err = r.str(); err != nil {
		return err
	}
	if m.HasSID, err = r.boolean(); err != nil {
		return err
	}
	if m.SID, err = r.bytes(); err != nil {
		return err
	}
	if m.HasCookie, err = r.boolean(); err != nil {
		return err
	}
	if m.Cookie, err = r.bytes(); err != nil {
		return err
	}
	if m.DTLSSessionID, err = r.bytes(); err != nil {
		return err
	}
	if m.UserName, err = r.str(); err != nil {
		return err
	}
	return nil
}
