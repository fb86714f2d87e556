// Command ledgerctl drives a Ledger CryptoNote device end to end: read
// its version, fetch the wallet address, scan a candidate output set, and
// build/sign/retrieve a transaction.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ledgerctl/cryptonote-core/pkg/config"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote/addresscodec"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote/cryptoimpl"
	"github.com/ledgerctl/cryptonote-core/pkg/device"
	"github.com/ledgerctl/cryptonote-core/pkg/transport"
	"github.com/ledgerctl/cryptonote-core/pkg/txbuilder"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	bridgeURL string
	verbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Drive a CryptoNote Ledger application over USB or a WebSocket bridge",
	}
	root.PersistentFlags().StringVar(&bridgeURL, "bridge", "", "WebSocket bridge URL (ws://host:port); required, since no USB HID exchange is built in")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newAddressCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newSendCmd())

	return root
}

func buildLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func buildTransport() (transport.Transport, error) {
	if bridgeURL != "" {
		return transport.NewWebSocketBridge(bridgeURL)
	}
	return nil, fmt.Errorf("ledgerctl: no transport configured — USB raw exchange requires a platform-specific HID implementation; pass --bridge for the emulator bridge")
}

func newClient() (*device.Client, error) {
	t, err := buildTransport()
	if err != nil {
		return nil, err
	}
	return device.New(t, device.WithLogger(buildLogger())), nil
}

func newHelper(client *device.Client) *cryptonote.Helper {
	return cryptonote.New(client, cryptoimpl.New(), addresscodec.New(), config.Default())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the device application's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.Version(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Fetch the wallet address",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			addr, err := client.Address(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"address": addr})
		},
	}
}

func newScanCmd() *cobra.Command {
	var txPub string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a transaction's outputs against the wallet's keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if txPub == "" {
				return fmt.Errorf("ledgerctl: --tx-pub is required")
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			helper := newHelper(client)
			var outputs []cryptonote.Output
			if err := json.NewDecoder(os.Stdin).Decode(&outputs); err != nil {
				return fmt.Errorf("ledgerctl: reading outputs from stdin: %w", err)
			}

			matched, err := helper.ScanTransactionOutputs(cmd.Context(), txPub, outputs)
			if err != nil {
				return err
			}
			return printJSON(matched)
		},
	}
	cmd.Flags().StringVar(&txPub, "tx-pub", "", "transaction public key (64-hex)")
	return cmd
}

// newSendCmd builds a transaction from a BuildRequest read as JSON on
// stdin, driving the device through the full TX_* state machine, and
// prints the resulting hash/size/raw bytes.
func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Build, sign, and retrieve a transaction from a BuildRequest on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			var buildReq txbuilder.BuildRequest
			if err := json.NewDecoder(os.Stdin).Decode(&buildReq); err != nil {
				return fmt.Errorf("ledgerctl: reading build request from stdin: %w", err)
			}

			cfg := config.Default()
			crypto := cryptoimpl.New()
			helper := cryptonote.New(client, crypto, addresscodec.New(), cfg)
			builder := txbuilder.New(client, helper, crypto, cfg, txbuilder.NewMemoryBuildRecordStore())

			result, err := builder.Build(cmd.Context(), buildReq)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
