// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gwvpn.io/gateway/internal/certinfo"
	"gwvpn.io/gateway/internal/gateway"
	"gwvpn.io/gateway/pkg/workerauth"
)

var (
	rootCmd = &cobra.Command{
		Use:   "gwworker",
		Short: "VPN gateway authentication worker",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the gateway, accepting and authenticating client connections",
		RunE:  cmdRun,
	}

	runCfg gateway.Config

	groupListFlag   string
	friendlyListFlag string
)

func init() {
	flags := runCmd.Flags()

	flags.StringVar(&runCfg.Address, "address", ":443", "address to listen for TLS client connections on")
	flags.StringVar(&runCfg.ServerCertPath, "server-cert", "", "path to the gateway's TLS server certificate chain")
	flags.StringVar(&runCfg.ServerKeyPath, "server-key", "", "path to the gateway's TLS server private key")
	flags.StringVar(&runCfg.ClientCAPath, "client-ca", "", "path to a CA bundle used to verify client certificates")
	flags.StringVar(&runCfg.SecModAddress, "secmod-address", "/var/run/ocserv-secmod.socket", "unix-domain socket address of the security module")
	flags.StringVar(&runCfg.CmdSocketPath, "cmd-socket", "/var/run/ocserv-main.socket", "unix-domain socket address the supervisor listens on")

	flags.StringVar(&groupListFlag, "groups", "", "comma-separated list of configured group names")
	flags.StringVar(&friendlyListFlag, "friendly-groups", "", "comma-separated list of friendly group display names, parallel to --groups")
	flags.StringVar(&runCfg.Worker.DefaultSelectGroup, "default-group", "", "group treated as 'no selection' in the challenge document")
	flags.StringVar(&runCfg.Worker.CertUserOID, "cert-user-oid", "", "dotted OID of the DN attribute carrying the certificate username")
	flags.StringVar(&runCfg.Worker.CertGroupOID, "cert-group-oid", "", "dotted OID of the DN attribute carrying certificate group memberships")
	flags.StringVar(&runCfg.Worker.Banner, "banner", "", "login banner text embedded in the success document")
	flags.StringVar(&runCfg.Worker.XMLConfigFile, "xml-config-file", "", "AnyConnect XML profile file name advertised via webvpnc")
	flags.BoolVar(&runCfg.Worker.AnyConnectCompat, "anyconnect-compat", true, "emit the AnyConnect webvpnc profile-update hint cookie")
	flags.BoolVar(&runCfg.Worker.CiscoClientCompat, "cisco-client-compat", false, "skip certificate introspection on cookie redemption even when certificate auth is configured")

	var authTypes string
	flags.StringVar(&authTypes, "auth-types", "password", "comma-separated auth types: password, certificate")
	cobra.OnInitialize(func() {
		runCfg.Worker.AuthTypes = parseAuthTypes(authTypes)
		runCfg.Worker.GroupList = splitNonEmpty(groupListFlag)
		runCfg.Worker.FriendlyGroupList = splitNonEmpty(friendlyListFlag)
	})

	rootCmd.AddCommand(runCmd)
}

func parseAuthTypes(s string) workerauth.AuthType {
	var t workerauth.AuthType
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "password":
			t |= workerauth.AuthTypeUsernamePass
		case "certificate":
			t |= workerauth.AuthTypeCertificate
		}
	}
	return t
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func cmdRun(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	tlsConf, err := buildTLSConfig(&runCfg)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", runCfg.Address)
	if err != nil {
		return err
	}

	server, err := gateway.NewServer(log, runCfg, listener, tlsConf)
	if err != nil {
		return err
	}

	log.Info("gateway listening", zap.String("address", runCfg.Address))
	return server.Run(context.Background())
}

func buildTLSConfig(cfg *gateway.Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.ServerCertPath, cfg.ServerKeyPath)
	if err != nil {
		return nil, err
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if cfg.ClientCAPath != "" {
		pem, err := ioutil.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.ClientCAPath)
		}
		tlsConf.ClientCAs = pool
		tlsConf.ClientAuth = tls.VerifyClientCertIfGiven
	}

	if len(cert.Certificate) > 0 {
		cfg.Worker.CertHash = certinfo.HashLeaf(cert.Certificate[0])
	}

	return tlsConf, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
