// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spectre/internal/config"
	"spectre/pkg/build"
)

// Commands selected on the command line.
const (
	CommandNone    = ""        // help or version was printed
	CommandRun     = "run"     // run the analyzer
	CommandList    = "list"    // print the devices
	CommandDevices = "devices" // browse the devices interactively
)

// Options is the parsed command line.
type Options struct {
	Command string
	Config  *config.Config
}

// flagOverrides copies each flag, when set on the command line, from the
// flag-bound config onto the loaded one.
var flagOverrides = map[string]func(dst, src *config.Config){
	"log-level": func(d, s *config.Config) { d.LogLevel = s.LogLevel },
	"log-file":  func(d, s *config.Config) { d.LogFile = s.LogFile },

	"device":            func(d, s *config.Config) { d.Audio.InputDevice = s.Audio.InputDevice },
	"input":             func(d, s *config.Config) { d.Audio.InputFile = s.Audio.InputFile },
	"sample-rate":       func(d, s *config.Config) { d.Audio.SampleRate = s.Audio.SampleRate },
	"frames-per-buffer": func(d, s *config.Config) { d.Audio.FramesPerBuffer = s.Audio.FramesPerBuffer },
	"low-latency":       func(d, s *config.Config) { d.Audio.LowLatency = s.Audio.LowLatency },

	"min-freq":  func(d, s *config.Config) { d.Analysis.MinFreq = s.Analysis.MinFreq },
	"max-freq":  func(d, s *config.Config) { d.Analysis.MaxFreq = s.Analysis.MaxFreq },
	"freq-res":  func(d, s *config.Config) { d.Analysis.FreqResolution = s.Analysis.FreqResolution },
	"time-res":  func(d, s *config.Config) { d.Analysis.TimeResolution = s.Analysis.TimeResolution },
	"log-scale": func(d, s *config.Config) { d.Analysis.LogScale = s.Analysis.LogScale },
	"window":    func(d, s *config.Config) { d.Analysis.Window = s.Analysis.Window },
	"engine":    func(d, s *config.Config) { d.Analysis.Engine = s.Analysis.Engine },
	"transform": func(d, s *config.Config) { d.Analysis.Transform = s.Analysis.Transform },
	"remove-dc": func(d, s *config.Config) { d.Analysis.RemoveDC = s.Analysis.RemoveDC },

	"display":      func(d, s *config.Config) { d.Display.Kind = s.Display.Kind },
	"width":        func(d, s *config.Config) { d.Display.Width = s.Display.Width },
	"refresh-rate": func(d, s *config.Config) { d.Display.RefreshRate = s.Display.RefreshRate },
	"amp-scale":    func(d, s *config.Config) { d.Display.AmpScale = s.Display.AmpScale },

	"record":     func(d, s *config.Config) { d.Recording.Enabled = s.Recording.Enabled },
	"record-dir": func(d, s *config.Config) { d.Recording.OutputDir = s.Recording.OutputDir },
	"bit-depth":  func(d, s *config.Config) { d.Recording.BitDepth = s.Recording.BitDepth },

	"websocket":          func(d, s *config.Config) { d.Transport.WebSocketEnabled = s.Transport.WebSocketEnabled },
	"websocket-addr":     func(d, s *config.Config) { d.Transport.WebSocketAddr = s.Transport.WebSocketAddr },
	"websocket-interval": func(d, s *config.Config) { d.Transport.WebSocketInterval = s.Transport.WebSocketInterval },
	"udp":                func(d, s *config.Config) { d.Transport.UDPEnabled = s.Transport.UDPEnabled },
	"udp-addr":           func(d, s *config.Config) { d.Transport.UDPTargetAddress = s.Transport.UDPTargetAddress },
	"udp-interval":       func(d, s *config.Config) { d.Transport.UDPSendInterval = s.Transport.UDPSendInterval },
	"log-interval":       func(d, s *config.Config) { d.Transport.LogInterval = s.Transport.LogInterval },
}

// ParseArgs parses args (without the program name) into Options. The
// configuration is loaded from --config or config.yaml, then SPECTRE_*
// environment variables, then the flags set in args, and validated.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.Get()
	flags := config.NewConfig()
	opts := &Options{Command: CommandNone}
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:           build.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Browse the capture devices and pick one interactively",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandDevices
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "C", "", "Configuration file (default ./"+config.DefaultPath+" if present)")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn or error")
	pf.StringVar(&flags.LogFile, "log-file", flags.LogFile, "Log file used while the terminal display is active")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	f := rootCmd.Flags()
	f.IntVarP(&flags.Audio.InputDevice, "device", "d", flags.Audio.InputDevice,
		"Input device ID, -1 for the default. Use 'list' to see available devices.")
	f.StringVarP(&flags.Audio.InputFile, "input", "i", flags.Audio.InputFile,
		"Analyze a .wav, .mp3 or .ogg file, or a sine given as tone:<Hz>, instead of a device")
	f.Float64VarP(&flags.Audio.SampleRate, "sample-rate", "s", flags.Audio.SampleRate,
		"Sample rate in Hz, 0 for the device default")
	f.IntVarP(&flags.Audio.FramesPerBuffer, "frames-per-buffer", "b", flags.Audio.FramesPerBuffer,
		"Frames per audio callback")
	f.BoolVarP(&flags.Audio.LowLatency, "low-latency", "l", flags.Audio.LowLatency,
		"Request the device's low input latency")

	f.Float64Var(&flags.Analysis.MinFreq, "min-freq", flags.Analysis.MinFreq, "Lowest displayed frequency in Hz")
	f.Float64Var(&flags.Analysis.MaxFreq, "max-freq", flags.Analysis.MaxFreq, "Highest displayed frequency in Hz")
	f.Float64Var(&flags.Analysis.FreqResolution, "freq-res", flags.Analysis.FreqResolution,
		"Frequency resolution at 20 Hz, in Hz")
	f.Float64Var(&flags.Analysis.TimeResolution, "time-res", flags.Analysis.TimeResolution,
		"Time resolution at 20 kHz, in ms")
	f.BoolVar(&flags.Analysis.LogScale, "log-scale", flags.Analysis.LogScale, "Logarithmic frequency axis")
	f.StringVarP(&flags.Analysis.Window, "window", "w", flags.Analysis.Window,
		"Window: rectangular, triangular, hann, hamming, blackman, nuttall, ...")
	f.StringVar(&flags.Analysis.Engine, "engine", flags.Analysis.Engine, "FFT engine: gonum or godsp")
	f.StringVar(&flags.Analysis.Transform, "transform", flags.Analysis.Transform,
		fmt.Sprintf("Transform: %s or %s", config.TransformSteadyQ, config.TransformFFT))
	f.BoolVar(&flags.Analysis.RemoveDC, "remove-dc", flags.Analysis.RemoveDC, "Remove the DC offset before each FFT")

	f.StringVar(&flags.Display.Kind, "display", flags.Display.Kind,
		fmt.Sprintf("Display: %s, %s or %s", config.DisplayTerminal, config.DisplayLog, config.DisplayNone))
	f.IntVar(&flags.Display.Width, "width", flags.Display.Width, "Spectrum bins for headless displays")
	f.Float64Var(&flags.Display.RefreshRate, "refresh-rate", flags.Display.RefreshRate, "Frames per second")
	f.Float64Var(&flags.Display.AmpScale, "amp-scale", flags.Display.AmpScale, "Displayed amplitude range in dB")

	f.BoolVarP(&flags.Recording.Enabled, "record", "r", flags.Recording.Enabled, "Record the analyzed signal to WAV")
	f.StringVarP(&flags.Recording.OutputDir, "record-dir", "o", flags.Recording.OutputDir, "Recording directory")
	f.IntVar(&flags.Recording.BitDepth, "bit-depth", flags.Recording.BitDepth, "Recording bit depth: 16, 24 or 32")

	f.BoolVar(&flags.Transport.WebSocketEnabled, "websocket", flags.Transport.WebSocketEnabled,
		"Serve frames to websocket clients on /ws")
	f.StringVar(&flags.Transport.WebSocketAddr, "websocket-addr", flags.Transport.WebSocketAddr, "Websocket listen address")
	f.DurationVar(&flags.Transport.WebSocketInterval, "websocket-interval", flags.Transport.WebSocketInterval,
		"Minimum time between websocket frames")
	f.BoolVar(&flags.Transport.UDPEnabled, "udp", flags.Transport.UDPEnabled, "Send frames as UDP packets")
	f.StringVar(&flags.Transport.UDPTargetAddress, "udp-addr", flags.Transport.UDPTargetAddress, "UDP target host:port")
	f.DurationVar(&flags.Transport.UDPSendInterval, "udp-interval", flags.Transport.UDPSendInterval,
		"Time between UDP packets")
	f.DurationVar(&flags.Transport.LogInterval, "log-interval", flags.Transport.LogInterval,
		"Time between spectrum summaries of the log display")

	rootCmd.SetArgs(args)
	executed, err := rootCmd.ExecuteC()
	if err != nil {
		return nil, err
	}
	if opts.Command == CommandNone {
		return opts, nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for name, apply := range flagOverrides {
		if executed.Flags().Changed(name) {
			apply(cfg, flags)
		}
	}
	if verbose && !executed.Flags().Changed("log-level") {
		cfg.LogLevel = "debug"
	}
	if opts.Command == CommandRun {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	opts.Config = cfg
	return opts, nil
}
