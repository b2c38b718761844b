package main

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/oscquery/internal/oscjson"
	"github.com/muurk/oscquery/internal/peerclient"
	"github.com/muurk/oscquery/internal/ui"
)

// Probe command flags
var (
	probePeer    string
	probeTimeout time.Duration
	outputFormat string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch a peer's HOST_INFO and parameters once",
	Long: `Fetch the HOST_INFO document and the flattened avatar parameters of an
OSCQuery peer without discovery, and print them.

The peer is the HTTP endpoint the peer advertises over mDNS.`,
	Example: `  # JSON output for scripting
  oscquery-monitor probe --peer 127.0.0.1:37511

  # Styled output
  oscquery-monitor probe --peer 127.0.0.1:37511 --format detailed`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probePeer, "peer", "", "Peer HTTP endpoint (ip:port)")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", peerclient.DefaultTimeout, "Request timeout")
	probeCmd.Flags().StringVar(&outputFormat, "format", "json", "Output format (json, detailed)")
	_ = probeCmd.MarkFlagRequired("peer")
}

// probeResult is the JSON output of probe
type probeResult struct {
	Peer       string            `json:"peer"`
	OSC        string            `json:"osc"`
	HostInfo   *oscjson.HostInfo `json:"host_info"`
	AvatarID   string            `json:"avatar_id"`
	Parameters map[string]any    `json:"parameters"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "json", "detailed":
	default:
		return fmt.Errorf("unknown format %q (expected json or detailed)", outputFormat)
	}

	peer, err := netip.ParseAddrPort(probePeer)
	if err != nil {
		return fmt.Errorf("invalid --peer %q: %w", probePeer, err)
	}

	result, err := probe(cmd, peer)
	if err != nil {
		if outputFormat == "detailed" {
			ui.NewPrinter(os.Stdout).PrintError("Probe "+peer.String(), err, troubleshooting(err)...)
		}
		return fmt.Errorf("probe failed: %s: %w", peerclient.GetShortErrorMessage(err), err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	p := ui.NewPrinter(os.Stdout)
	p.PrintSuccess("Probed "+result.Peer,
		ui.Param{Key: "Name", Value: result.HostInfo.Name},
		ui.Param{Key: "OSC", Value: result.OSC},
		ui.Param{Key: "Transport", Value: string(result.HostInfo.OSCTransport)},
		ui.Param{Key: "Avatar", Value: result.AvatarID},
		ui.Param{Key: "Parameters", Value: fmt.Sprint(len(result.Parameters))},
	)
	snapshot := &peerclient.Snapshot{AvatarID: result.AvatarID, Parameters: result.Parameters}
	for _, name := range snapshot.Names() {
		p.Println(ui.FormatParameter(name, result.Parameters[name]))
	}
	return nil
}

func probe(cmd *cobra.Command, peer netip.AddrPort) (*probeResult, error) {
	client := peerclient.New(probeTimeout, nil)

	info, err := client.FetchHostInfo(cmd.Context(), peer)
	if err != nil {
		return nil, err
	}
	snapshot, err := client.FetchSnapshot(cmd.Context(), peer)
	if err != nil {
		return nil, err
	}

	return &probeResult{
		Peer:       peer.String(),
		OSC:        peerclient.OSCEndpoint(info, peer.Addr()).String(),
		HostInfo:   info,
		AvatarID:   snapshot.AvatarID,
		Parameters: snapshot.Parameters,
	}, nil
}

func troubleshooting(err error) []string {
	switch {
	case peerclient.IsNetworkError(err):
		return []string{
			"Check that the peer is running and OSCQuery is enabled",
			"Use the HTTP port the peer advertises over mDNS, not its OSC port",
			"Increase --timeout on slow networks",
		}
	case peerclient.IsHTTPError(err):
		return []string{"The endpoint answered but is not an OSCQuery server"}
	case peerclient.IsShapeError(err):
		return []string{"The peer has no avatar loaded or does not expose /avatar/parameters"}
	default:
		return nil
	}
}
