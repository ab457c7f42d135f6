// Package cmd bwgen 探测客户端命令树
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bwgen/internal/client"
	"bwgen/internal/constants"
	"bwgen/internal/version"
)

// 各探测命令共享的参数
type probeFlags struct {
	server  string
	timeout time.Duration
	idle    time.Duration
	filler  string
	kcpMode string
}

var (
	okColor   = color.New(color.FgGreen).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	failColor = color.New(color.FgRed).SprintFunc()
)

// NewRootCommand 构建命令树
func NewRootCommand() *cobra.Command {
	f := &probeFlags{}
	root := &cobra.Command{
		Use:   "bwgen",
		Short: "Probe a bwgen bandwidth test server",
		Long: `bwgen requests a quantity of filler bytes from a bwgen server and
reports how much arrived and how fast.

Examples:
  bwgen tcp 4|MB --server 10.0.0.5:9000
  bwgen kcp 64|MB --server 10.0.0.5:9000
  bwgen udp 1|MB --server 10.0.0.5:9001
  bwgen tip --server 10.0.0.5:9001`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.server, "server", "s", "", "server address host:port (default localhost with the transport's default port)")
	pf.DurationVar(&f.timeout, "timeout", 10*time.Second, "dial timeout and wait for the first reply")
	pf.DurationVar(&f.idle, "idle", 500*time.Millisecond, "silence that ends a transfer once the target arrived")
	pf.StringVar(&f.filler, "filler", string(constants.DefaultFiller), "expected filler byte")
	pf.StringVar(&f.kcpMode, "kcp-mode", "fast", "kcp tuning: fast or normal")

	root.AddCommand(
		newStreamCommand(f, client.TransportTCP),
		newStreamCommand(f, client.TransportKCP),
		newDatagramCommand(f),
		newTipCommand(f),
		newVersionCommand(),
	)
	return root
}

// Execute 执行命令并返回进程退出码
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, failColor("Error:"), err)
		return 1
	}
	return 0
}

func (f *probeFlags) options() (client.Options, error) {
	opts := client.DefaultOptions()
	opts.Timeout = f.timeout
	opts.Idle = f.idle
	if len(f.filler) != 1 {
		return opts, fmt.Errorf("--filler must be a single byte, got %q", f.filler)
	}
	opts.Filler = f.filler[0]
	switch f.kcpMode {
	case "fast":
		opts.KCP.Fast = true
	case "normal":
		opts.KCP.Fast = false
	default:
		return opts, fmt.Errorf("--kcp-mode must be fast or normal, got %q", f.kcpMode)
	}
	return opts, nil
}

func (f *probeFlags) address(defaultPort int) string {
	if f.server != "" {
		return f.server
	}
	return fmt.Sprintf("localhost:%d", defaultPort)
}

func printResult(w io.Writer, res *client.Result) {
	status := okColor("OK")
	switch {
	case res.ErrorReply != "":
		status = failColor("REJECTED")
	case !res.Valid:
		status = failColor("CORRUPT")
	case res.Target > 0 && !res.Complete():
		status = warnColor("INCOMPLETE")
	}
	fmt.Fprintf(w, "%-10s %s\n", status, res.String())
	if res.Packets > 0 {
		fmt.Fprintf(w, "           %d datagrams, %.2f%% lost\n", res.Packets, res.Loss()*100)
	}
}
