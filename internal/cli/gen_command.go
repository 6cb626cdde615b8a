package cli

import (
	"fmt"
	"log/slog"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/spf13/cobra"
	wav "github.com/youpy/go-wav"
)

// newGenCommand builds the gen subcommand, which synthesizes test tones into
// WAV files the sampler can load
func (c *CLI) newGenCommand() *cobra.Command {
	var (
		freq     int
		duration float64
		rate     int
		output   string
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a sine test tone as a WAV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.loadConfig(); err != nil {
				return err
			}
			if duration <= 0 {
				return fmt.Errorf("duration must be positive")
			}
			if output == "" {
				return fmt.Errorf("output path is required")
			}

			sr := beep.SampleRate(rate)
			tone, err := generators.SinTone(sr, freq)
			if err != nil {
				return fmt.Errorf("failed to create tone generator: %w", err)
			}

			frames := int(float64(rate) * duration)
			if err := c.writeToneWAV(output, tone, frames, rate); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d Hz sine, %.2f s at %d Hz\n",
				output, freq, duration, rate)
			return nil
		},
	}

	cmd.Flags().IntVarP(&freq, "freq", "f", 440, "tone frequency in Hz")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 1.0, "tone length in seconds")
	cmd.Flags().IntVarP(&rate, "rate", "r", 48000, "sample rate in Hz")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output WAV path")

	return cmd
}

// writeToneWAV streams a beep generator into a 16-bit stereo WAV file
func (c *CLI) writeToneWAV(path string, tone beep.Streamer, frames, rate int) error {
	file, err := c.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := wav.NewWriter(file, uint32(frames), 2, uint32(rate), 16)

	buf := make([][2]float64, 512)
	samples := make([]wav.Sample, 512)
	remaining := frames

	for remaining > 0 {
		want := len(buf)
		if remaining < want {
			want = remaining
		}

		n, ok := tone.Stream(buf[:want])
		if n == 0 && !ok {
			break
		}

		for i := 0; i < n; i++ {
			samples[i].Values[0] = int(clipSample(buf[i][0]) * 32767)
			samples[i].Values[1] = int(clipSample(buf[i][1]) * 32767)
		}
		if err := writer.WriteSamples(samples[:n]); err != nil {
			return fmt.Errorf("failed to write samples: %w", err)
		}
		remaining -= n
	}

	slog.Debug("tone written", "path", path, "frames", frames-remaining)
	return nil
}

func clipSample(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
