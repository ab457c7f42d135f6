package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bwgen/internal/app/server"
	"bwgen/internal/config/source"
	"bwgen/internal/version"
)

type serverFlags struct {
	config       string
	logLevel     string
	streamPort   int
	datagramPort int
	protocol     string
	httpEnabled  bool
	httpListen   string
	noBanner     bool
}

// overrides 将显式设置的参数转换为命令行配置覆盖
func (f *serverFlags) overrides(cmd *cobra.Command) source.CLIOverrides {
	var o source.CLIOverrides
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	if flags.Changed("stream-port") {
		o.StreamPort = &f.streamPort
	}
	if flags.Changed("datagram-port") {
		o.DatagramPort = &f.datagramPort
	}
	if flags.Changed("protocol") {
		o.Protocol = &f.protocol
	}
	if flags.Changed("http") {
		o.HTTPEnabled = &f.httpEnabled
	}
	if flags.Changed("http-listen") {
		o.HTTPListen = &f.httpListen
	}
	return o
}

func newRootCommand() *cobra.Command {
	f := &serverFlags{}
	root := &cobra.Command{
		Use:   "bwgen-server",
		Short: "Synthetic bandwidth test server",
		Long: `bwgen-server answers "<size>|<unit>" requests with that many filler bytes
over a stream listener (TCP or KCP, port 9000) and a UDP listener (port 9001).`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), f, f.overrides(cmd))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "configuration file (default: ./bwgen.yaml, ./config.yaml, /etc/bwgen/config.yaml)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.IntVar(&f.streamPort, "stream-port", 0, "stream listener port")
	pf.IntVar(&f.datagramPort, "datagram-port", 0, "datagram listener port")
	pf.StringVar(&f.protocol, "protocol", "", "stream protocol: tcp or kcp")
	pf.BoolVar(&f.httpEnabled, "http", false, "enable the HTTP side service")
	pf.StringVar(&f.httpListen, "http-listen", "", "HTTP side service address")
	root.Flags().BoolVar(&f.noBanner, "no-banner", false, "do not print the startup banner")

	root.AddCommand(newVersionCommand(), newConfigCommand(f))
	return root
}

func runServer(ctx context.Context, f *serverFlags, overrides source.CLIOverrides) error {
	cfg, configPath, err := server.LoadConfig(f.config, overrides)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg, configPath)
	if err != nil {
		return err
	}
	defer srv.Close()

	if !f.noBanner {
		srv.DisplayStartupBanner()
	}
	if err := srv.Bind(ctx); err != nil {
		return err
	}
	return srv.RunWithSignals(ctx)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(version.Get())
		},
	}
}

func newConfigCommand(f *serverFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the effective configuration after applying defaults, file, environment and flags. Exits non-zero when it is invalid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configPath, err := server.LoadConfig(f.config, f.overrides(cmd))
			if cfg == nil {
				return err
			}
			if configPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", configPath)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if encErr := enc.Encode(cfg); encErr != nil {
				return encErr
			}
			return err
		},
	}
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
