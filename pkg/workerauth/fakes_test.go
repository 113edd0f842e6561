// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"bytes"
	"fmt"

	"github.com/gogo/protobuf/proto"

	"gwvpn.io/gateway/pkg/ipc"
)

// fakeTLS is a minimal in-memory TLSSession, recording everything
// written so tests can assert on the rendered HTTP response.
type fakeTLS struct {
	out    bytes.Buffer
	corked bool
	certs  [][]byte
	closed bool
	reason string
}

func (f *fakeTLS) Cork() { f.corked = true }

func (f *fakeTLS) Uncork() error {
	f.corked = false
	return nil
}

func (f *fakeTLS) Printf(format string, args ...interface{}) error {
	fmt.Fprintf(&f.out, format, args...)
	return nil
}

func (f *fakeTLS) Puts(s string) error {
	f.out.WriteString(s)
	return nil
}

func (f *fakeTLS) Write(p []byte) error {
	f.out.Write(p)
	return nil
}

func (f *fakeTLS) PeerCertificatesDER() ([][]byte, bool) {
	return f.certs, len(f.certs) > 0
}

func (f *fakeTLS) FatalClose(reason string) {
	f.closed = true
	f.reason = reason
}

// fakeTransport is a scripted ipc.Transport: Send records every
// message sent, Recv replays queued replies in order.
type fakeTransport struct {
	sent    []proto.Message
	sentFDs []int
	replies []proto.Message
	fds     []int
	closed  bool
	sendErr error
	recvErr error
}

func (f *fakeTransport) Send(msg proto.Message, fd int) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	f.sentFDs = append(f.sentFDs, fd)
	return nil
}

func (f *fakeTransport) Recv() (proto.Message, int, error) {
	if f.recvErr != nil {
		return nil, -1, f.recvErr
	}
	if len(f.replies) == 0 {
		return nil, -1, ipc.Error.New("no more scripted replies")
	}
	msg := f.replies[0]
	fd := -1
	if len(f.fds) > 0 {
		fd = f.fds[0]
		f.fds = f.fds[1:]
	}
	f.replies = f.replies[1:]
	return msg, fd, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}
