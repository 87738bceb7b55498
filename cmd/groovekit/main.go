// Package main is the entry point for the groovekit CLI
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/groovekit/groovekit/pkg/api"
	"github.com/groovekit/groovekit/pkg/codec"
	"github.com/groovekit/groovekit/pkg/config"
	"github.com/groovekit/groovekit/pkg/engine"
	"github.com/groovekit/groovekit/pkg/export"
	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/logger"
	"github.com/groovekit/groovekit/pkg/notation"
	"github.com/groovekit/groovekit/pkg/shorten"
	"github.com/groovekit/groovekit/pkg/sound/midiout"
	"github.com/groovekit/groovekit/pkg/sound/synth"
	"github.com/groovekit/groovekit/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	verbose      bool
	configPath   string
	outputFile   string
	soundBackend string
	midiPort     string
	syncMode     string
	serverPort   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "groovekit",
	Short: "Edit, play and share drum grooves",
	Long: `groovekit is a drum-groove toolkit: a transport engine that plays
grooves through MIDI or a built-in synth, a codec that round-trips groove
state through shareable URLs, and a transcoder that emits ABC notation and
Standard MIDI Files.

Examples:
  groovekit play '?Tempo=80&Swing=0&TimeSig=4/4&Div=16&Measures=1&KK=x---x---x---x---'
  groovekit decode 'https://groovekit.app/groove?Tempo=80&...'
  groovekit abc '?Tempo=80&...' -o groove.abc
  groovekit export-midi '?Tempo=80&...' -o groove.mid
  groovekit tui
  groovekit serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Init(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
			os.Exit(1)
		}
		logger.Init(verbose)
	},
}

var playCmd = &cobra.Command{
	Use:   "play [groove-url]",
	Short: "Play a groove until interrupted",
	Long:  `Plays the groove encoded in the given URL (or the default groove) through the selected sound backend.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

var encodeCmd = &cobra.Command{
	Use:   "encode <groove.json>",
	Short: "Encode a groove JSON file to a shareable URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <groove-url>",
	Short: "Decode a groove URL to JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var abcCmd = &cobra.Command{
	Use:   "abc <groove-url>",
	Short: "Transcode a groove URL to ABC notation",
	Args:  cobra.ExactArgs(1),
	RunE:  runABC,
}

var exportMIDICmd = &cobra.Command{
	Use:   "export-midi <groove-url>",
	Short: "Export a groove URL as a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportMIDI,
}

var validateURLCmd = &cobra.Command{
	Use:   "validate-url <url>",
	Short: "Classify a groove URL against the share-length limits",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateURL,
}

var shortenCmd = &cobra.Command{
	Use:   "shorten <url>",
	Short: "Shorten a groove URL via the configured shortener",
	Args:  cobra.ExactArgs(1),
	RunE:  runShorten,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [groove-url]",
	Short: "Launch the interactive groove editor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI output ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports := midiout.Ports()
		if len(ports) == 0 {
			fmt.Println("No MIDI output ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/groovekit/config.toml)")

	playCmd.Flags().StringVar(&soundBackend, "sound", "", "Sound backend: synth or midi (default from config)")
	playCmd.Flags().StringVar(&midiPort, "midi-port", "", "MIDI output port name (midi backend)")
	playCmd.Flags().StringVar(&syncMode, "sync", "", "Sync mode: start, beat or measure (default from config)")

	tuiCmd.Flags().StringVar(&soundBackend, "sound", "", "Sound backend: synth or midi (default from config)")
	tuiCmd.Flags().StringVar(&midiPort, "midi-port", "", "MIDI output port name (midi backend)")

	abcCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .abc file path (default: stdout)")
	exportMIDICmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path (required)")
	_ = exportMIDICmd.MarkFlagRequired("output")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(abcCmd)
	rootCmd.AddCommand(exportMIDICmd)
	rootCmd.AddCommand(validateURLCmd)
	rootCmd.AddCommand(shortenCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
}

// queryOf strips everything before the query string so users can paste full
// URLs or bare query strings interchangeably.
func queryOf(arg string) string {
	if i := strings.IndexByte(arg, '?'); i >= 0 {
		return arg[i+1:]
	}
	return arg
}

// grooveFromArg decodes the optional URL argument, falling back to the
// default groove.
func grooveFromArg(args []string) (*groove.Groove, error) {
	if len(args) == 0 {
		return groove.Default(), nil
	}
	q := queryOf(args[0])
	if !codec.HasGrooveParams(q) {
		return nil, fmt.Errorf("argument does not encode a groove")
	}
	return codec.Decode(q)
}

// newSounder builds the selected sound backend.
func newSounder() (engine.Sounder, error) {
	backend := soundBackend
	if backend == "" {
		backend = config.GetString("sound.backend")
	}
	switch backend {
	case "midi":
		port := midiPort
		if port == "" {
			port = config.GetString("midi.port")
		}
		return midiout.Open(port)
	case "synth", "":
		return synth.New()
	default:
		return nil, fmt.Errorf("unknown sound backend %q", backend)
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	g, err := grooveFromArg(args)
	if err != nil {
		return err
	}
	sounder, err := newSounder()
	if err != nil {
		return err
	}

	eng := engine.New(sounder)
	mode := syncMode
	if mode == "" {
		mode = config.GetString("sync.mode")
	}
	switch engine.SyncMode(mode) {
	case engine.SyncStart, engine.SyncBeat, engine.SyncMeasure:
		eng.SetSyncMode(engine.SyncMode(mode))
	default:
		return fmt.Errorf("unknown sync mode %q", mode)
	}

	if err := eng.Play(g); err != nil {
		return err
	}
	fmt.Printf("Playing at %d BPM (%s, division %d). Ctrl-C to stop.\n",
		g.Tempo, g.TimeSig, int(g.Division))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	eng.Stop()
	fmt.Println("\nStopped.")
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var payload api.GrooveJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse groove JSON: %w", err)
	}
	g, err := payload.ToGroove()
	if err != nil {
		return err
	}
	fullURL := config.GetString("share.base_url") + "?" + codec.Encode(g)
	report := codec.ValidateURLLength(fullURL)
	fmt.Println(fullURL)
	if report.Status != codec.LengthOK {
		fmt.Fprintf(os.Stderr, "%s: %s\n", report.Status, report.Message)
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	g, err := codec.Decode(queryOf(args[0]))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(api.FromGroove(g), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runABC(cmd *cobra.Command, args []string) error {
	g, err := codec.Decode(queryOf(args[0]))
	if err != nil {
		return err
	}
	abc := notation.ToABC(g, notation.Options{})
	if outputFile == "" {
		fmt.Print(abc)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(abc), 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", outputFile)
	return nil
}

func runExportMIDI(cmd *cobra.Command, args []string) error {
	g, err := codec.Decode(queryOf(args[0]))
	if err != nil {
		return err
	}
	data, err := export.GrooveToSMF(g)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", outputFile)
	return nil
}

func runValidateURL(cmd *cobra.Command, args []string) error {
	report := codec.ValidateURLLength(args[0])
	fmt.Printf("%s (%d chars): %s\n", report.Status, report.Length, report.Message)
	if report.Status == codec.LengthError {
		os.Exit(1)
	}
	return nil
}

func runShorten(cmd *cobra.Command, args []string) error {
	base := config.GetString("shortener.base_url")
	if base == "" {
		return fmt.Errorf("no shortener configured (set shortener.base_url)")
	}
	client := shorten.New(base, config.GetString("shortener.token"),
		time.Duration(config.GetInt("shortener.timeout"))*time.Second)
	short, err := client.Shorten(args[0])
	if err != nil {
		return err
	}
	fmt.Println(short)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	g, err := grooveFromArg(args)
	if err != nil {
		return err
	}
	sounder, err := newSounder()
	if err != nil {
		return err
	}
	return tui.Run(g, engine.New(sounder))
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort)
}
