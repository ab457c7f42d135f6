package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bwgen/internal/client"
	"bwgen/internal/constants"
	"bwgen/internal/version"
)

func newStreamCommand(f *probeFlags, transport string) *cobra.Command {
	return &cobra.Command{
		Use:   transport + " <size>|<unit>",
		Short: fmt.Sprintf("Request filler over the %s stream transport", transport),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			res, err := client.FetchStream(cmd.Context(), transport, f.address(constants.DefaultStreamPort), args[0], opts)
			if res != nil && (err == nil || res.ErrorReply != "") {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
}

func newDatagramCommand(f *probeFlags) *cobra.Command {
	var want int64
	cmd := &cobra.Command{
		Use:   "udp <size>|<unit>",
		Short: "Request a burst of filler datagrams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			res, err := client.FetchDatagram(cmd.Context(), f.address(constants.DefaultDatagramPort), args[0], want, opts)
			if res != nil && (err == nil || res.ErrorReply != "") {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&want, "want", 0, "bytes to wait for (default: derived from the request)")
	return cmd
}

func newTipCommand(f *probeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tip",
		Short: "Ask the datagram server for its help text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			help, err := client.Tip(cmd.Context(), f.address(constants.DefaultDatagramPort), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), help)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "bwgen %s\n", version.GetVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "  Go:       %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  Platform: %s\n", info.Platform)
		},
	}
}
