/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/voxpair/internal/audio"
	"github.com/valpere/voxpair/internal/router"
	"github.com/valpere/voxpair/internal/session"
	"github.com/valpere/voxpair/internal/synth"
)

var (
	conversePair     string
	converseDuration time.Duration
	converseOutDir   string
	converseRaw      bool
	converseRate     int
)

var converseCmd = &cobra.Command{
	Use:   "converse <audio files...>",
	Short: "Run one conversation turn per audio file",
	Long: `Run a conversation over recorded clips: each file is one turn in the
selected pair. The spoken language decides the direction of each turn.
Failed turns are reported and skipped; the history is printed at the end,
newest first.

Examples:
  voxpair converse --pair en-hi hello.wav namaste.wav
  voxpair converse --pair "English ↔ Arabic" --out ./voice clip.webm
  voxpair converse --pair en-tl --raw --sample-rate 16000 clip.pcm`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pair, err := findPair(a.registry, conversePair)
		if err != nil {
			return err
		}
		duration, err := cfg.Bounds().Check(converseDuration)
		if err != nil {
			return err
		}
		if converseOutDir != "" {
			if err := os.MkdirAll(converseOutDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		sess := session.New(pair, duration)
		fmt.Printf("Conversation in %s: speak %s or %s.\n\n",
			pair.Label, a.registry.DisplayName(pair.A), a.registry.DisplayName(pair.B))

		failed := 0
		for i, path := range args {
			clip, err := readClip(path)
			if err != nil {
				return err
			}
			clip.Duration = duration

			fmt.Printf("[%d/%d] %s\n", i+1, len(args), path)
			out, err := a.pipeline.Run(cmd.Context(), sess, clip)
			if out != nil && out.Recognized != "" {
				fmt.Printf("  Recognized: %s\n", out.Recognized)
				fmt.Printf("  Detected:   %s -> %s\n", out.RawTag, out.Detected)
			}
			if err != nil {
				failed++
				fmt.Printf("  Error: %s\n\n", describeTurnError(err, a))
				continue
			}

			t := out.Turn
			fmt.Printf("  %s -> %s: %s\n", a.registry.DisplayName(t.SourceLang), a.registry.DisplayName(t.TargetLang), t.TargetText)
			if out.SynthesisErr != nil {
				fmt.Printf("  Voice output failed: %v\n", out.SynthesisErr)
			} else if converseOutDir != "" {
				name, err := writeVoice(converseOutDir, i+1, out.Audio)
				if err != nil {
					return err
				}
				fmt.Printf("  Voice: %s\n", name)
			}
			fmt.Println()
		}

		printHistory(sess, a)
		if failed == len(args) {
			return fmt.Errorf("no turn completed")
		}
		return nil
	},
}

func describeTurnError(err error, a *app) string {
	var rejected *router.RejectedError
	if errors.As(err, &rejected) {
		return fmt.Sprintf("detected language %q is not part of the selected pair (%s ↔ %s); please speak one of those languages",
			rejected.Detected, a.registry.DisplayName(rejected.Pair.A), a.registry.DisplayName(rejected.Pair.B))
	}
	return err.Error()
}

func readClip(path string) (audio.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if converseRaw {
		return audio.Clip{
			Data:        audio.EncodeWAV(data, audio.Format{SampleRate: converseRate, Channels: 1, BitsPerSample: 16}),
			ContentType: audio.ContentTypeWAV,
		}, nil
	}

	ct := ""
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		ct = audio.ContentTypeWAV
	case ".webm":
		ct = "audio/webm"
	case ".ogg", ".oga":
		ct = "audio/ogg"
	case ".mp3":
		ct = "audio/mpeg"
	}
	return audio.Clip{Data: data, ContentType: ct}, nil
}

func writeVoice(dir string, n int, a *synth.Audio) (string, error) {
	ext := ".mp3"
	if a.ContentType == synth.ContentTypeWAV {
		ext = ".wav"
	}
	name := filepath.Join(dir, fmt.Sprintf("turn-%02d%s", n, ext))
	if err := os.WriteFile(name, a.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write voice output: %w", err)
	}
	return name, nil
}

func printHistory(sess *session.Session, a *app) {
	turns := sess.Log.RenderOrder()
	if len(turns) == 0 {
		return
	}

	fmt.Println("Conversation history (newest first):")
	for _, t := range turns {
		fmt.Printf("[%s] (%s) %s\n", t.Clock(), a.registry.DisplayName(t.SourceLang), t.SourceText)
		fmt.Printf("    detected as %q -> normalized as %q\n", t.DetectedRaw, t.SourceLang)
		fmt.Printf("    (%s) %s\n", a.registry.DisplayName(t.TargetLang), t.TargetText)
	}
}

func init() {
	rootCmd.AddCommand(converseCmd)

	converseCmd.Flags().StringVarP(&conversePair, "pair", "p", "en-hi", "Language pair label or codes (e.g. en-ar)")
	converseCmd.Flags().DurationVarP(&converseDuration, "duration", "d", 0, "Recording duration each clip is capped at (default from config)")
	converseCmd.Flags().StringVarP(&converseOutDir, "out", "o", "", "Directory for synthesized voice output")
	converseCmd.Flags().BoolVar(&converseRaw, "raw", false, "Treat inputs as raw 16-bit mono PCM")
	converseCmd.Flags().IntVar(&converseRate, "sample-rate", 16000, "Sample rate of raw PCM input")
}
