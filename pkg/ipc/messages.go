// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package ipc defines the typed messages exchanged between a gateway
// worker and its two privileged collaborators — the security module and
// the main supervisor — and the codec used to move them across a
// length-prefixed transport (component D of the worker authentication
// design).
//
// The message set intentionally specifies only the field contract, not
// a wire format: component D may frame these however it likes, as long
// as requests and replies stay strictly paired within one connection.
// Each type below implements proto.Message so it can travel through
// github.com/gogo/protobuf/proto's Marshal/Unmarshal entry points, but
// the actual encoding is hand-written (the Marshaler/Unmarshaler fast
// path) rather than reflected from struct tags, since there is no .proto
// source to generate from.
package ipc

import "fmt"

// ReplyKind is the three-way discriminator shared by both reply message
// types (AuthCookieReply and SecAuthReply).
type ReplyKind uint8

// Reply outcomes.
const (
	ReplyOK ReplyKind = iota
	ReplyFailed
	ReplyMSG
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyOK:
		return "OK"
	case ReplyFailed:
		return "FAILED"
	case ReplyMSG:
		return "MSG"
	default:
		return fmt.Sprintf("ReplyKind(%d)", uint8(k))
	}
}

// Kind is the discriminator byte each framed message is tagged with.
type Kind uint8

// Message kinds, one per schema in spec.md §4.4.
const (
	KindAuthCookieRequest Kind = iota + 1
	KindAuthCookieReply
	KindSecAuthInit
	KindSecAuthCont
	KindSecAuthReply
)

// AuthCookieRequest is sent by a worker to the supervisor to redeem a
// previously-issued cookie on reconnect (component G).
type AuthCookieRequest struct {
	Cookie     []byte
	TLSAuthOK  bool
}

// AuthCookieReply is the supervisor's answer to an AuthCookieRequest.
// On ReplyOK it is accompanied out-of-band by a passed tunnel file
// descriptor (the transport's job, not this struct's).
type AuthCookieReply struct {
	Reply       ReplyKind
	VName       string
	UserName    string
	GroupName   string
	SessionID   []byte
	IPv4        string
	IPv6        string
	IPv4Local   string
	IPv6Local   string
	IPv4Netmask string
	IPv6Netmask string
	IPv6Prefix  uint32

	HasRxPerSec bool
	RxPerSec    uint32
	HasTxPerSec bool
	TxPerSec    uint32

	HasNetPriority bool
	NetPriority    uint32

	HasNoUDP bool
	NoUDP    bool

	Routes []string
	DNS    []string
	NBNS   []string
}

// SecAuthInit starts an authentication dialogue with the security
// module (component E, INACTIVE→INIT transition).
type SecAuthInit struct {
	UserName  string
	GroupName string
	Hostname  string
	IP        string
	TLSAuthOK bool

	CertUserName   string
	CertGroupNames []string
}

// SecAuthCont continues an authentication dialogue with the security
// module (component E, INIT/REQ→REQ transition).
type SecAuthCont struct {
	Password string
	HasSID   bool
	SID      []byte
}

// SecAuthReply is the security module's answer to a SecAuthInit or
// SecAuthCont.
type SecAuthReply struct {
	Reply ReplyKind
	Msg   string

	HasSID bool
	SID    []byte

	HasCookie bool
	Cookie    []byte

	DTLSSessionID []byte

	UserName string
}

// proto.Message boilerplate. Reset/String/ProtoMessage satisfy the
// interface; the actual encoding lives in codec.go via Marshal/Unmarshal.

func (m *AuthCookieRequest) Reset()         { *m = AuthCookieRequest{} }
func (m *AuthCookieRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *AuthCookieRequest) ProtoMessage()   {}

func (m *AuthCookieReply) Reset()         { *m = AuthCookieReply{} }
func (m *AuthCookieReply) String() string { return fmt.Sprintf("%+v", *m) }
func (m *AuthCookieReply) ProtoMessage()   {}

func (m *SecAuthInit) Reset()         { *m = SecAuthInit{} }
func (m *SecAuthInit) String() string { return fmt.Sprintf("%+v", *m) }
func (m *SecAuthInit) ProtoMessage()   {}

func (m *SecAuthCont) Reset()         { *m = SecAuthCont{} }
func (m *SecAuthCont) String() string { return fmt.Sprintf("%+v", *m) }
func (m *SecAuthCont) ProtoMessage()   {}

func (m *SecAuthReply) Reset()         { *m = SecAuthReply{} }
func (m *SecAuthReply) String() string { return fmt.Sprintf("%+v", *m) }
func (m *SecAuthReply) ProtoMessage()   {}
