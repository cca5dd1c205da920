package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"go-metronome/patterns"
	"go-metronome/sequencer"
)

var (
	outputFile string
	smfBars    int
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage the pattern library",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored patterns",
	Args:  cobra.NoArgs,
	RunE:  runPatternsList,
}

var patternsImportCmd = &cobra.Command{
	Use:   "import <file.pat>",
	Short: "Import patterns from a .pat file, replacing same-named ones",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsImport,
}

var patternsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every pattern as a .pat file",
	Args:  cobra.NoArgs,
	RunE:  runPatternsExport,
}

var patternsSMFCmd = &cobra.Command{
	Use:   "smf <name>",
	Short: "Render a pattern as a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsSMF,
}

var patternsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsDelete,
}

func init() {
	patternsExportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")
	patternsSMFCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output .mid file (default <name>.mid)")
	patternsSMFCmd.Flags().IntVar(&smfBars, "bars", 4, "bars to render")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsImportCmd)
	patternsCmd.AddCommand(patternsExportCmd)
	patternsCmd.AddCommand(patternsSMFCmd)
	patternsCmd.AddCommand(patternsDeleteCmd)
}

// withStore opens the configured pattern database for one command
func withStore(fn func(cfg sequencer.Config, instrument string, store *patterns.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("pattern store: %w", err)
	}
	defer store.Close()
	return fn(cfg.Engine(sequencer.DefaultInstruments()), cfg.Instrument.Instrument, store)
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	return withStore(func(_ sequencer.Config, _ string, store *patterns.Store) error {
		ctx := cmd.Context()
		names, err := store.Names(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range names {
			p, err := store.Get(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-24s %2d columns  %d rows\n", p.Name, p.Figure(), len(p.Rows))
		}
		return nil
	})
}

func runPatternsImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return withStore(func(_ sequencer.Config, _ string, store *patterns.Store) error {
		n, err := store.Import(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d patterns\n", n)
		return nil
	})
}

func runPatternsExport(cmd *cobra.Command, args []string) error {
	return withStore(func(_ sequencer.Config, _ string, store *patterns.Store) error {
		var w io.Writer = cmd.OutOrStdout()
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return store.Export(cmd.Context(), w)
	})
}

func runPatternsSMF(cmd *cobra.Command, args []string) error {
	return withStore(func(cfg sequencer.Config, instrument string, store *patterns.Store) error {
		idx := sequencer.DefaultInstruments()
		names := func(key uint8) string { return idx.KeyName(instrument, key) }
		g, err := store.Grid(cmd.Context(), args[0], names)
		if err != nil {
			return err
		}

		path := outputFile
		if path == "" {
			path = fileName(g.Name) + ".mid"
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := patterns.WriteSMF(f, g, cfg, smfBars); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	})
}

func runPatternsDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(_ sequencer.Config, _ string, store *patterns.Store) error {
		return store.Delete(cmd.Context(), args[0])
	})
}

// fileName replaces characters that do not belong in a file name
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}
