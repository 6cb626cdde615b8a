package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediapool.click/internal/bank"
	"mediapool.click/internal/engine"
	"mediapool.click/internal/media"
	"mediapool.click/internal/sampler"
	"mediapool.click/internal/slots"
	"mediapool.click/internal/tracking"
	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

// patternStep is one parsed token of a play pattern
type patternStep struct {
	mediaIndex int32 // -1 for a rest
}

// parsePattern turns a tracker-style pattern string into steps: integers are
// slot indices, "-" and "." are rests
func parsePattern(pattern string) ([]patternStep, error) {
	var steps []patternStep
	for _, token := range strings.Fields(pattern) {
		if token == "-" || token == "." {
			steps = append(steps, patternStep{mediaIndex: -1})
			continue
		}
		idx, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern token %q", token)
		}
		steps = append(steps, patternStep{mediaIndex: int32(idx)})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return steps, nil
}

// newPlayCommand builds the play subcommand
func (c *CLI) newPlayCommand() *cobra.Command {
	var (
		pattern  string
		bpm      float64
		loops    int
		style    string
		poly     bool
		gate     float64
		backend  string
	)

	cmd := &cobra.Command{
		Use:   "play <bank>",
		Short: "Load a sample bank and play a trigger pattern through the sampler",
		Long: `Load a sample bank (a .json bank file or a directory of media files)
into the sampler's slot table and run a tracker-style trigger pattern.

Pattern tokens are slot indices; "-" or "." is a rest:

  mediapool play ./drums --pattern "0 - 1 - 0 0 1 -"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.AudioBackend = backend
			}
			if style != "" {
				cfg.PlayStyle = style
				if err := c.configManager.Validate(cfg); err != nil {
					return err
				}
			}

			steps, err := parsePattern(pattern)
			if err != nil {
				return err
			}

			// Load the bank into a slot table
			b, err := bank.Load(c.fs, args[0])
			if err != nil {
				return err
			}
			table := slots.NewTable(c.fs, media.NewDefaultRegistry())
			results := table.AddBatch(b.Paths())
			loaded := 0
			for _, res := range results {
				if res.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s%s: %v\n", res.AudioPath, res.VideoPath, res.Err)
					continue
				}
				loaded++
			}
			if loaded == 0 {
				return fmt.Errorf("bank %q contained no loadable media", b.Name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded bank %q: %d slots\n", b.Name, table.Count())

			// Build the module
			module := sampler.New(sampler.Options{
				Slots:  table,
				Voices: cfg.MaxVoices,
			})
			defer module.Close()
			module.SetPlayStyle(playStyleFromConfig(cfg.PlayStyle))
			if poly || cfg.PolyphonyMode == "poly" {
				module.SetPolyphonyMode(voice.Polyphonic)
			}

			// Optional trigger diagnostics
			if cfg.TrackingDB != "" {
				db, err := tracking.NewDatabase(cfg.TrackingDB)
				if err != nil {
					slog.Warn("tracking disabled", "error", err)
				} else {
					defer db.Close()
					module.SetRecordHook(tracking.NewRecorder(db).Hook())
				}
			}

			// Open the audio backend
			factory := engine.NewBackendFactory()
			be, err := factory.CreateBackend(cfg.AudioBackend, engine.Config{
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
			})
			if err != nil {
				return err
			}
			if err := be.Start(module); err != nil {
				return fmt.Errorf("failed to start audio backend: %w", err)
			}
			defer be.Close()

			return runPattern(cmd, module, steps, bpm, loops, gate)
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", "0", "trigger pattern (slot indices, '-' for rest)")
	cmd.Flags().Float64Var(&bpm, "bpm", 120, "tempo in beats per minute (one step per 16th note)")
	cmd.Flags().IntVar(&loops, "loops", 1, "how many times to repeat the pattern")
	cmd.Flags().StringVar(&style, "style", "", "play style: once, loop, grain, next")
	cmd.Flags().BoolVar(&poly, "poly", false, "enable polyphonic mode")
	cmd.Flags().Float64Var(&gate, "gate", 0, "gate duration per step in seconds (0 = untimed)")
	cmd.Flags().StringVar(&backend, "backend", "", "audio backend: auto, malgo, oto")

	return cmd
}

// runPattern drives the module: a ticker fires the sequencer steps into the
// trigger input while the control loop ticks at frame rate
func runPattern(cmd *cobra.Command, module *sampler.Module, steps []patternStep, bpm float64, loops int, gate float64) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be positive")
	}
	stepSeconds := 60.0 / bpm / 4.0

	stepTicker := time.NewTicker(time.Duration(stepSeconds * float64(time.Second)))
	defer stepTicker.Stop()
	frameTicker := time.NewTicker(time.Second / 60)
	defer frameTicker.Stop()

	total := len(steps) * loops
	// Step echo only when a human is watching
	interactive := isInteractive()

	fired := 0
	fireStep := func() {
		s := steps[fired%len(steps)]
		ok := module.TriggerIn(trigger.Event{
			Step:       int32(fired),
			MediaIndex: s.mediaIndex,
			Duration:   float32(gate),
		})
		if !ok {
			slog.Warn("trigger queue full, step dropped", "step", fired)
		}
		if interactive && s.mediaIndex >= 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "step %3d: slot %d\n", fired, s.mediaIndex)
		}
		fired++
	}

	// Fire step zero immediately, the rest on the ticker
	fireStep()

	for {
		select {
		case <-stepTicker.C:
			if fired < total {
				fireStep()
			}
		case <-frameTicker.C:
			module.Tick()
			if fired >= total && module.Mode() == sampler.ModeIdle {
				stats := module.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "done: %d steps, %d dropped events\n",
					fired, stats.DroppedEvents)
				return nil
			}
		}
	}
}

// playStyleFromConfig maps a config play style name onto the module enum
func playStyleFromConfig(name string) sampler.PlayStyle {
	switch name {
	case "loop":
		return sampler.StyleLoop
	case "grain":
		return sampler.StyleGrain
	case "next":
		return sampler.StyleNext
	default:
		return sampler.StyleOnce
	}
}
