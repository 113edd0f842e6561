// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package ipctransport is the reference implementation of ipc.Transport:
// a length-prefixed frame on top of a Unix-domain socket (to the
// security module) or the persistent command file descriptor (to the
// supervisor), with file-descriptor passing via SCM_RIGHTS for the one
// message that carries one (the cookie-redemption OK reply, spec.md
// §4.7).
//
// This package is deliberately kept outside pkg/workerauth: spec.md §1
// lists the raw IPC transport as an external collaborator, so the core
// state machine only ever depends on the ipc.Transport interface.
package ipctransport

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/gogo/protobuf/proto"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"gwvpn.io/gateway/pkg/ipc"
)

// Error is this package's error class.
var Error = errs.Class("ipc transport error")

const maxFrameSize = 1 << 20 // 1MiB, generous for a config/auth message

// UnixTransport frames ipc messages over a *net.UnixConn.
type UnixTransport struct {
	log  *zap.Logger
	conn *net.UnixConn
}

// New wraps an established Unix-domain connection.
func New(log *zap.Logger, conn *net.UnixConn) *UnixTransport {
	return &UnixTransport{log: log, conn: conn}
}

// Dial opens a fresh connection to addr, per spec.md §4.1: the security
// module connection is a new socket per round trip; the supervisor's
// command connection is also opened with Dial, once per client
// connection, and persists for that worker's lifetime.
func Dial(log *zap.Logger, addr *net.UnixAddr) (*UnixTransport, error) {
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return New(log, conn), nil
}

// Send writes a length-prefixed frame: [4-byte big-endian length][1-byte
// kind][payload]. When fd >= 0 it is passed as ancillary data on the
// same sendmsg call.
func (t *UnixTransport) Send(msg proto.Message, fd int) error {
	kind, payload, err := ipc.Encode(msg)
	if err != nil {
		return Error.Wrap(err)
	}

	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)+1))
	frame[4] = byte(kind)
	copy(frame[5:], payload)

	var oob []byte
	if fd >= 0 {
		oob = unix.UnixRights(fd)
	}

	_, _, err = t.conn.WriteMsgUnix(frame, oob, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// Recv reads the next frame and decodes it, returning any passed
// descriptor (-1 if none).
//
// Ancillary data (the passed fd) is only delivered alongside whichever
// recvmsg call retrieves the bytes it was attached to on the sender's
// side; since Send writes header, kind, and payload in a single sendmsg
// call, the fd is fetched on this function's first read and carried
// forward even if the frame arrives split across several reads.
func (t *UnixTransport) Recv() (proto.Message, int, error) {
	lenBuf := make([]byte, 4)
	fd, err := t.readMsgFull(lenBuf)
	if err != nil {
		return nil, -1, Error.Wrap(err)
	}

	size := binary.BigEndian.Uint32(lenBuf)
	if size == 0 || size > maxFrameSize {
		return nil, -1, Error.New("invalid frame size %d", size)
	}

	body := make([]byte, size)
	if bodyFD, err := t.readMsgFull(body); err != nil {
		return nil, -1, Error.Wrap(err)
	} else if bodyFD >= 0 {
		fd = bodyFD
	}

	kind := ipc.Kind(body[0])
	msg, err := ipc.Decode(kind, body[1:])
	if err != nil {
		return nil, fd, Error.Wrap(err)
	}
	return msg, fd, nil
}

// readMsgFull fills buf completely, returning the first passed
// descriptor encountered while doing so (-1 if none).
func (t *UnixTransport) readMsgFull(buf []byte) (int, error) {
	fd := -1
	oob := make([]byte, unix.CmsgSpace(4))
	for read := 0; read < len(buf); {
		n, oobn, _, _, err := t.conn.ReadMsgUnix(buf[read:], oob)
		if err != nil {
			return fd, err
		}
		if n == 0 {
			return fd, io.ErrUnexpectedEOF
		}
		read += n

		if oobn > 0 && fd == -1 {
			cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn])
			if perr == nil {
				for _, cmsg := range cmsgs {
					if fds, ferr := unix.ParseUnixRights(&cmsg); ferr == nil && len(fds) > 0 {
						fd = fds[0]
					}
				}
			}
		}
	}
	return fd, nil
}

// Close closes the underlying connection.
func (t *UnixTransport) Close() error {
	return Error.Wrap(t.conn.Close())
}
