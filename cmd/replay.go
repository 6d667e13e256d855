package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"firestige.xyz/facerelay/internal/daemon"
	"firestige.xyz/facerelay/plugins/capture/pcapfile"
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture.pcap|capture.pcapng>",
	Short: "Relay LiveLink Face frames recorded in a capture file",
	Long: `Replay LiveLink datagrams from a pcap or pcapng file through the relay.

Only UDP datagrams sent to --port are replayed (0 replays every UDP datagram).
With --realtime the original inter-frame timing is kept, scaled by --speed.

Examples:
  facerelay replay session.pcapng
  facerelay replay --realtime=false --osc-port 9001 session.pcap
  facerelay replay --speed 2 --port 0 capture.pcap
  facerelay replay --dry-run --print-format json --realtime=false session.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd, args[0])
	},
}

var replayNoProgress bool

func init() {
	fs := replayCmd.Flags()
	fs.Int("port", 0, "LiveLink destination port to replay, 0 for any (default 11111)")
	addOSCFlags(fs)
	addRemapFlags(fs)
	fs.Bool("realtime", true, "pace frames using their capture timestamps")
	fs.Float64("speed", 0, "realtime speed factor (default 1)")
	fs.BoolVar(&replayNoProgress, "no-progress", false, "do not show a progress bar")
	addDryRunFlags(fs)
}

func runReplay(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reporter, err := dryRunReporter(cmd)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("capture file: %w", err)
	}

	var progress io.Writer
	var bar *progressbar.ProgressBar
	if !replayNoProgress {
		bar = newProgressBar(cmd.ErrOrStderr(), info.Size(), "replaying")
		progress = bar
	}

	capturer := pcapfile.New(pcapfile.Config{
		Path:     path,
		Port:     uint16(cfg.LiveLink.Port),
		Realtime: cfg.Replay.Realtime,
		Speed:    cfg.Replay.Speed,
		Progress: progress,
	})

	d := daemon.New(cfg, daemon.Options{
		ConfigPath: configFile,
		Flags:      cmd.Flags(),
		Name:       "replay",
		Capturer:   capturer,
		Reporter:   reporter,
	})
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start replay: %w", err)
	}

	runErr := d.Run()
	if bar != nil {
		_ = bar.Finish()
	}

	stats := d.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d datagrams: %d reported, %d decode errors, %d remap errors, %d send errors\n",
		stats.Received, stats.Reported, stats.DecodeErrors, stats.RemapErrors, stats.ReportErrors)
	return runErr
}

func newProgressBar(w io.Writer, size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
