// Package main is the go-metronome command: a MIDI metronome with a terminal
// UI, an HTTP and OSC remote control, and a pattern library.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-metronome/api"
	"go-metronome/config"
	"go-metronome/debug"
	"go-metronome/midi"
	"go-metronome/osc"
	"go-metronome/patterns"
	"go-metronome/sequencer"
	"go-metronome/theme"
	"go-metronome/tui"
)

var version = "dev"

var (
	configPath string
	debugLog   bool
	palette    string
	remote     bool
	httpAddr   string
	oscAddr    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "go-metronome",
	Short: "MIDI metronome with accents, patterns and remote control",
	Long: `go-metronome plays metronome clicks or drum patterns on a MIDI output.

Examples:
  go-metronome                      # terminal UI
  go-metronome --remote             # terminal UI plus HTTP and OSC control
  go-metronome serve                # headless, HTTP and OSC only
  go-metronome ports
  go-metronome patterns import grooves.pat`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debugLog {
			if err := debug.Enable(); err != nil {
				return fmt.Errorf("enable debug log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Disable()
	},
	RunE: runTUI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the terminal UI (default)",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run headless with the HTTP and OSC remote control",
	RunE:  runServe,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output and input ports",
	RunE:  runPorts,
}

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List known instruments, banks and programs",
	RunE:  runInstruments,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/go-metronome/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log to ~/.config/go-metronome/debug.log")

	for _, cmd := range []*cobra.Command{rootCmd, tuiCmd} {
		cmd.Flags().StringVar(&palette, "palette", theme.DefaultPalette, "builtin palette name or .gpl file")
		cmd.Flags().BoolVar(&remote, "remote", false, "also serve the HTTP and OSC remote control")
	}
	for _, cmd := range []*cobra.Command{rootCmd, tuiCmd, serveCmd} {
		cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides config)")
		cmd.Flags().StringVar(&oscAddr, "osc", "", "OSC listen address (overrides config)")
	}

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(instrumentsCmd)
	rootCmd.AddCommand(patternsCmd)
}

// app is everything a long-running command needs
type app struct {
	cfg         *config.Config
	cfgPath     string
	instruments *sequencer.InstrumentIndex
	ports       *midi.System
	engine      *sequencer.Engine
	store       *patterns.Store
	events      *sequencer.Fanout
}

func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	if httpAddr != "" {
		cfg.Remote.HTTPAddr = httpAddr
	}
	if oscAddr != "" {
		cfg.Remote.OSCAddr = oscAddr
	}
	return cfg, path, nil
}

func openStore(cfg *config.Config) (*patterns.Store, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	store, err := patterns.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if n, err := store.Seed(context.Background()); err != nil {
		store.Close()
		return nil, err
	} else if n > 0 {
		debug.Log("patterns", "seeded %d sample patterns", n)
	}
	return store, nil
}

func openApp() (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("pattern store: %w", err)
	}

	a := &app{
		cfg:         cfg,
		cfgPath:     path,
		instruments: sequencer.DefaultInstruments(),
		ports:       midi.NewSystem(),
		store:       store,
	}
	a.engine = sequencer.New(cfg.Engine(a.instruments), a.ports)
	a.events = sequencer.NewFanout(a.engine.Notifications())

	if name := cfg.Patterns.Selected; name != "" {
		g, err := store.Grid(context.Background(), name, a.keyName)
		if err != nil {
			debug.Warn("patterns", "selected pattern %q: %v", name, err)
		} else if err := a.engine.SetPattern(g); err != nil {
			debug.Warn("patterns", "selected pattern %q: %v", name, err)
		}
	}
	if err := a.engine.SetPatternMode(cfg.Patterns.PatternMode); err != nil {
		return nil, err
	}
	a.engine.AutoConnect()
	return a, nil
}

func (a *app) keyName(key uint8) string {
	return a.instruments.KeyName(a.cfg.Instrument.Instrument, key)
}

// close stops playback, saves the settings and releases the driver
func (a *app) close() error {
	a.cfg.Capture(a.engine)
	errSave := a.cfg.SaveFile(a.cfgPath)
	a.engine.Close()
	a.store.Close()
	a.ports.Close()
	return errSave
}

// serveRemote runs the HTTP and OSC servers until ctx is done
func (a *app) serveRemote(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := api.New(a.engine, api.Options{
		Store:       a.store,
		Instruments: a.instruments,
		Instrument:  a.cfg.Instrument.Instrument,
		Events:      a.events,
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, a.cfg.Remote.HTTPAddr)
	})

	if a.cfg.Remote.OSCAddr != "" {
		o, err := osc.New(a.engine)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return o.ListenAndServe(ctx, a.cfg.Remote.OSCAddr)
		})
	}
	return g.Wait()
}

func runTUI(cmd *cobra.Command, args []string) error {
	th, err := loadTheme()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go a.events.Run(ctx)

	watcher := midi.NewPortWatcher(a.ports)
	go watcher.Run(ctx)

	if remote {
		go func() {
			if err := a.serveRemote(ctx); err != nil {
				debug.Warn("remote", "stopped: %v", err)
			}
		}()
	}

	events, unsubscribe := a.events.Subscribe(sequencer.NotificationBuffer)
	defer unsubscribe()

	m := tui.NewModel(a.engine, tui.Options{
		Store:       a.store,
		Instruments: a.instruments,
		Instrument:  a.cfg.Instrument.Instrument,
		Theme:       th,
		Events:      events,
		Ports:       watcher.Events(),
		Selected:    a.cfg.Patterns.Selected,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	final, runErr := p.Run()
	if fm, ok := final.(tui.Model); ok && fm.Selected() != "" {
		a.cfg.Patterns.Selected = fm.Selected()
	}
	return errors.Join(runErr, a.close())
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go a.events.Run(ctx)

	// transport requests from the MIDI input
	requests, unsubscribe := a.events.Subscribe(64)
	defer unsubscribe()
	go func() {
		for n := range requests {
			if n.Kind == sequencer.DeviceLost {
				debug.Warn("transport", "%v", n.Err)
				continue
			}
			if err := a.engine.Apply(n); err != nil {
				debug.Warn("transport", "%s: %v", n.Kind, err)
			}
		}
	}()

	fmt.Printf("HTTP remote control on http://%s/api/v1 (swagger at /swagger/index.html)\n", a.cfg.Remote.HTTPAddr)
	if a.cfg.Remote.OSCAddr != "" {
		fmt.Printf("OSC remote control on udp://%s%s/...\n", a.cfg.Remote.OSCAddr, osc.Prefix)
	}

	serveErr := a.serveRemote(ctx)
	return errors.Join(serveErr, a.close())
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports := midi.NewSystem()
	defer ports.Close()

	outs, err := ports.Outputs()
	if err != nil {
		return err
	}
	ins, err := ports.Inputs()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Outputs:")
	for i, name := range outs {
		fmt.Fprintf(out, "  %d: %s\n", i, name)
	}
	fmt.Fprintln(out, "Inputs:")
	for i, name := range ins {
		fmt.Fprintf(out, "  %d: %s\n", i, name)
	}
	return nil
}

func runInstruments(cmd *cobra.Command, args []string) error {
	idx := sequencer.DefaultInstruments()
	out := cmd.OutOrStdout()
	for _, name := range idx.Names() {
		ins, _ := idx.Instrument(name)
		fmt.Fprintln(out, ins.Name)
		for _, bank := range ins.Banks {
			fmt.Fprintf(out, "  %s\n", bank.Name)
			for _, prog := range idx.Programs(ins.Name, bank.Name) {
				fmt.Fprintf(out, "    %s\n", prog)
			}
		}
	}
	return nil
}

func loadTheme() (*theme.Theme, error) {
	p, err := theme.Resolve(palette)
	if err != nil {
		return nil, err
	}
	return theme.New(p), nil
}
