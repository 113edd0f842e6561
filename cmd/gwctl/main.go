// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Command gwctl is a small standalone operator tool for inspecting
// issued cookies and sids offline, in the single-purpose spirit of
// cmd/inspector in the teacher's own tree.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/btcsuite/btcutil/base58"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gwctl",
	Short: "Inspect gateway session cookies and sids",
}

var decodeCmd = &cobra.Command{
	Use:   "decode [base64-wire-value]",
	Short: "Decode a base64 webvpn/webvpncontext cookie value and print its base58 form",
	Args:  cobra.ExactArgs(1),
	RunE:  cmdDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func cmdDecode(cmd *cobra.Command, args []string) error {
	raw, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("not valid base64 wire form: %w", err)
	}

	fmt.Printf("bytes:  %d\n", len(raw))
	fmt.Printf("hex:    %x\n", raw)
	fmt.Printf("base58: %s\n", base58.Encode(raw))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
