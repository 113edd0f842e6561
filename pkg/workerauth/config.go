// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

// AuthType is a bitmask of the credential mechanisms a gateway accepts.
type AuthType uint8

// Recognized auth types, combinable.
const (
	AuthTypeUsernamePass AuthType = 1 << iota
	AuthTypeCertificate
)

// Has reports whether t includes flag.
func (t AuthType) Has(flag AuthType) bool { return t&flag != 0 }

// Buffer sizes mirroring the original's fixed char[] buffers (spec.md §3,
// §9 "manual arena allocation"): our analogue is a length cap applied on
// write rather than a fixed backing array.
const (
	// NameBufSize bounds username/groupname/cert_username.
	NameBufSize = 64
	// SIDSize is the opaque security-module dialogue identifier width.
	SIDSize = 20
	// SessionIDSize is the DTLS resumption identifier width.
	SessionIDSize = 16
	// MaxAuthSecs is the lifetime, in seconds, of the webvpncontext cookie.
	MaxAuthSecs = 5 * 60
	// MaxMsgSize bounds a security-module challenge message.
	MaxMsgSize = 256
	// MaxBannerSize bounds the configured login banner.
	MaxBannerSize = 4096
)

// NetworkConfig carries the gateway-wide network defaults a cookie
// redemption reply may override (spec.md §4.7).
type NetworkConfig struct {
	IPv4Netmask string
	IPv6Netmask string
	IPv6Prefix  uint32
	RxPerSec    uint32
	TxPerSec    uint32
	NetPriority uint32
	UDPPort     uint16
}

// Config is the shared, read-mostly configuration consulted by every
// worker session (spec.md §3's "config (shared, read-mostly)").
type Config struct {
	AuthTypes AuthType

	// GroupList and FriendlyGroupList are parallel slices: index i's
	// display name is FriendlyGroupList[i] if non-empty, else
	// GroupList[i] itself.
	GroupList         []string
	FriendlyGroupList []string

	// DefaultSelectGroup is both the bare <option> emitted in the
	// challenge (§4.3) and the sentinel meaning "no real choice" on
	// submission (§4.5's "Group selection subtlety").
	DefaultSelectGroup string

	// CertUserOID and CertGroupOID are dotted X.509 DN attribute OIDs,
	// e.g. "2.5.4.3" for CommonName. Empty means "use the whole DN" for
	// the username, or "no group extraction" for groups.
	CertUserOID  string
	CertGroupOID string

	Banner string

	// CertHash and the XML profile fields feed the AnyConnect webvpnc
	// profile-update hint (§4.6).
	CertHash      string
	XMLConfigFile string
	XMLConfigHash string

	// AnyConnectCompat and CiscoClientCompat are runtime flags standing
	// in for the original's compile-time ANYCONNECT_CLIENT_COMPAT and
	// its cisco_client_compat config knob (SPEC_FULL.md §12).
	AnyConnectCompat  bool
	CiscoClientCompat bool

	Network NetworkConfig
}

// IsDefaultSelection reports whether group equals the configured
// placeholder, meaning the client made no real choice (§4.5).
func (c *Config) IsDefaultSelection(group string) bool {
	return c.DefaultSelectGroup != "" && group == c.DefaultSelectGroup
}

// FriendlyName returns the display name for a configured group's raw
// value, falling back to the value itself.
func (c *Config) FriendlyName(value string) string {
	for i, v := range c.GroupList {
		if v != value {
			continue
		}
		if i < len(c.FriendlyGroupList) && c.FriendlyGroupList[i] != "" {
			return c.FriendlyGroupList[i]
		}
		return value
	}
	return value
}
