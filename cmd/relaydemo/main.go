// Command relaydemo runs a frame relay between a synthetic producer and a
// host render loop, and reports what was dropped along the way.
//
// The producer paints numbered frames into a rotating set of shared
// buffers at one rate; the host renders at another, reading each presented
// frame back and stamping the relay statistics on it. With --output the last
// presented frame is saved as PNG.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/framerelay/backend"
	_ "github.com/gogpu/framerelay/backend/native"
	_ "github.com/gogpu/framerelay/backend/soft"
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "relaydemo",
	Short: "Frame relay demo",
	Long: `relaydemo hands frames from a synthetic producer to a render loop
through a framerelay ring and prints the relay statistics.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the producer and render loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered backends",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(backend.Available(), "\n"))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relaydemo v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./relaydemo.yaml)")

	f := runCmd.Flags()
	f.String("backend", "", "backend name; empty picks the best available")
	f.Int("width", 640, "frame width")
	f.Int("height", 360, "frame height")
	f.Int("slots", 3, "relay ring slots")
	f.Int("buffers", 3, "producer buffers in rotation")
	f.Int("fps", 60, "producer frame rate")
	f.Int("render-fps", 60, "host render rate")
	f.Int("resize-every", 0, "toggle the producer size every N frames (0 disables)")
	f.Duration("duration", 3*time.Second, "run time")
	f.String("output", "", "save the last presented frame to this PNG file")
	f.String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
