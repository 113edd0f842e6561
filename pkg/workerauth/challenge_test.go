// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRenderInitialGroupOrdering(t *testing.T) {
	// Scenario S3 from spec.md §8.
	config := &Config{
		AuthTypes:         AuthTypeUsernamePass | AuthTypeCertificate,
		GroupList:         []string{"A", "B", "C"},
		FriendlyGroupList: []string{"α", "β", "γ"},
	}

	tls := &fakeTLS{}
	s := &Session{
		Log:        zaptest.NewLogger(t),
		Config:     config,
		TLS:        tls,
		Groupname:  "B",
		CertAuthOK: true,
		CertGroups: []string{"B", "D"},
		certRead:   true,
	}

	err := s.RenderInitial(context.Background(), 1)
	require.NoError(t, err)

	body := tls.out.String()
	bOpt := `<option value="B">β</option>`
	dOpt := `<option>D</option>`
	aOpt := `<option value="A">α</option>`
	cOpt := `<option value="C">γ</option>`

	assert.True(t, strings.Index(body, bOpt) < strings.Index(body, dOpt))
	assert.True(t, strings.Index(body, dOpt) < strings.Index(body, aOpt))
	assert.True(t, strings.Index(body, aOpt) < strings.Index(body, cOpt))

	assert.False(t, tls.corked)
}

func TestRenderChallengeReqStateAsksForPasswordOnly(t *testing.T) {
	tls := &fakeTLS{}
	s := &Session{
		Log:       zaptest.NewLogger(t),
		Config:    &Config{},
		TLS:       tls,
		AuthState: StateReq,
	}

	require.NoError(t, s.renderChallenge(1, "One-time code?"))

	body := tls.out.String()
	assert.Contains(t, body, "One-time code?")
	assert.Contains(t, body, `name="password"`)
	assert.NotContains(t, body, `name="username"`)
}

func TestRenderChallengeDefaultPasswordPrompt(t *testing.T) {
	tls := &fakeTLS{}
	s := &Session{
		Log:       zaptest.NewLogger(t),
		Config:    &Config{},
		TLS:       tls,
		AuthState: StateReq,
	}

	require.NoError(t, s.renderChallenge(1, ""))
	assert.Contains(t, tls.out.String(), defaultPasswordPrompt)
}

func TestRenderInitialNoGroupsSkipsSelect(t *testing.T) {
	tls := &fakeTLS{}
	s := &Session{
		Log:    zaptest.NewLogger(t),
		Config: &Config{},
		TLS:    tls,
	}

	require.NoError(t, s.RenderInitial(context.Background(), 1))
	assert.NotContains(t, tls.out.String(), "<select")
}

