package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"bwgen/internal/version"
)

const bannerWidth = 60

var (
	bannerCyan  = color.New(color.FgCyan).SprintFunc()
	bannerBold  = color.New(color.Bold).SprintFunc()
	bannerGreen = color.New(color.FgGreen).SprintFunc()
	bannerFaint = color.New(color.Faint).SprintFunc()
)

// DisplayStartupBanner 向标准输出打印启动信息
// 仅在交互式终端上清屏
func (s *Server) DisplayStartupBanner() {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Print("\033[2J\033[H")
	}
	s.writeBanner(os.Stdout)
}

func (s *Server) writeBanner(w io.Writer) {
	rule := bannerFaint("  " + strings.Repeat("─", bannerWidth))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s  %s\n", bannerCyan(bannerBold("bwgen")), bannerFaint("synthetic bandwidth test generator"))
	fmt.Fprintf(w, "  %s\n\n", bannerFaint("Version "+version.GetShortVersion()))

	fmt.Fprintln(w, bannerBold("  Server Information"))
	fmt.Fprintln(w, rule)
	configPath := s.configPath
	if configPath == "" {
		configPath = "(defaults)"
	}
	logFile := s.cfg.Log.File
	if logFile == "" {
		logFile = "(console)"
	}
	rows := []struct{ label, value string }{
		{"Config File", configPath},
		{"Start Time", time.Now().Format("2006-01-02 15:04:05")},
		{"Log", fmt.Sprintf("%s, %s", s.cfg.Log.Level, logFile)},
		{"Chunk", fmt.Sprintf("%d bytes of %q", s.cfg.Payload.ChunkSize, s.cfg.Payload.Filler)},
		{"Units", strings.Join(s.cfg.Payload.Units, ", ")},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-18s %s\n", bannerBold(row.label+":"), row.value)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, bannerBold("  Listeners"))
	fmt.Fprintln(w, rule)
	st := s.cfg.Server.Stream
	dg := s.cfg.Server.Datagram
	listenerRow(w, "Stream", strings.ToUpper(st.Protocol), fmt.Sprintf("%s:%d", st.Host, st.Port), st.Enabled)
	listenerRow(w, "Datagram", "UDP", fmt.Sprintf("%s:%d", dg.Host, dg.Port), dg.Enabled)
	listenerRow(w, "HTTP", "HTTP", s.cfg.HTTP.Listen, s.cfg.HTTP.Enabled)
	fmt.Fprintln(w)

	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("━", bannerWidth)))
	fmt.Fprintln(w)
}

func listenerRow(w io.Writer, name, proto, addr string, enabled bool) {
	status := bannerFaint("✗ Disabled")
	if enabled {
		status = bannerGreen("✓ Enabled")
	} else {
		addr = ""
	}
	fmt.Fprintf(w, "  %-10s %-6s %-22s %s\n", name+":", proto, addr, status)
}
