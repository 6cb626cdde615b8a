package cli

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/spf13/cobra"

	"mediapool.click/internal/media"
)

// analysisWindow is how many frames feed the spectrum estimate
const analysisWindow = 8192

// newAnalyzeCommand builds the analyze subcommand
func (c *CLI) newAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Print format, level and spectrum information for an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.loadConfig(); err != nil {
				return err
			}

			file, err := c.fs.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer file.Close()

			registry := media.NewDefaultRegistry()
			clip, err := registry.DecodeFile(args[0], file)
			if err != nil {
				return err
			}

			peak, rms := measureLevels(clip)
			dominant := dominantFrequency(clip)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:        %s\n", args[0])
			fmt.Fprintf(out, "channels:    %d\n", clip.Channels)
			fmt.Fprintf(out, "sample rate: %d Hz\n", clip.SampleRate)
			fmt.Fprintf(out, "frames:      %d\n", clip.Frames())
			fmt.Fprintf(out, "duration:    %.3f s\n", clip.Duration())
			fmt.Fprintf(out, "peak:        %.4f (%.1f dBFS)\n", peak, toDBFS(peak))
			fmt.Fprintf(out, "rms:         %.4f (%.1f dBFS)\n", rms, toDBFS(rms))
			fmt.Fprintf(out, "dominant:    %.1f Hz\n", dominant)
			return nil
		},
	}
}

// measureLevels returns the peak and RMS of the clip across all channels
func measureLevels(clip *media.Clip) (peak, rms float64) {
	if len(clip.Samples) == 0 {
		return 0, 0
	}
	var sumSquares float64
	for _, s := range clip.Samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
		sumSquares += v * v
	}
	rms = math.Sqrt(sumSquares / float64(len(clip.Samples)))
	return peak, rms
}

// dominantFrequency estimates the strongest spectral component of the
// clip's first channel via an FFT over the analysis window
func dominantFrequency(clip *media.Clip) float64 {
	frames := clip.Frames()
	if frames == 0 || clip.SampleRate == 0 {
		return 0
	}

	window := analysisWindow
	if frames < window {
		window = frames
	}

	input := make([]float64, window)
	for i := 0; i < window; i++ {
		input[i] = float64(clip.Sample(i, 0))
	}

	spectrum := fft.FFTReal(input)

	// Skip the DC bin; only the first half of the spectrum is meaningful
	bestBin := 0
	bestMag := 0.0
	for bin := 1; bin < len(spectrum)/2; bin++ {
		mag := cmplx.Abs(spectrum[bin])
		if mag > bestMag {
			bestMag = mag
			bestBin = bin
		}
	}

	return float64(bestBin) * float64(clip.SampleRate) / float64(window)
}

// toDBFS converts a linear level to decibels full scale
func toDBFS(level float64) float64 {
	if level <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level)
}
