// Command tts-bench measures ElevenLabs stream-input latency for narration.
// It runs repeated synthesis sessions with the same script and reports time
// to first audio, total session time and artifact size.
//
// Usage:
//
//	ELEVENLABS_API_KEY=sk_... go run ./cmd/tts-bench/
//	ELEVENLABS_API_KEY=sk_... go run ./cmd/tts-bench/ -voice george -runs 10
//
// Flags:
//
//	-list-voices    List account voices and exit
//	-voice          Voice preset or ID (or set ELEVENLABS_VOICE_ID)
//	-model          Model ID (default: eleven_turbo_v2_5)
//	-runs           Number of sessions (default: 5)
//	-timeout        Per-session timeout (default: 60s)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-narrate/pkg/tts"
)

const defaultScript = "The quick brown fox jumps over the lazy dog. " +
	"Narration latency is measured from the first byte sent to the first audio fragment received."

var (
	listVoices = flag.Bool("list-voices", false, "List account voices and exit")
	voiceFlag  = flag.String("voice", "", "Voice preset or ID (or set ELEVENLABS_VOICE_ID)")
	model      = flag.String("model", tts.ModelTurboV2_5, "Model ID: eleven_turbo_v2_5, eleven_flash_v2_5, eleven_multilingual_v2")
	runs       = flag.Int("runs", 5, "Number of sessions to run")
	text       = flag.String("text", defaultScript, "Script to synthesize")
	timeout    = flag.Duration("timeout", 60*time.Second, "Per-session timeout")
	inlineAuth = flag.Bool("inline-auth", false, "Send the API key in the first message instead of a header")
)

func main() {
	flag.Parse()

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		fmt.Println("❌ ELEVENLABS_API_KEY environment variable required")
		os.Exit(1)
	}
	fmt.Printf("🔑 API Key: %s\n", maskKey(apiKey))

	voice := *voiceFlag
	if voice == "" {
		voice = os.Getenv("ELEVENLABS_VOICE_ID")
	}
	if voice == "" {
		voice = tts.DefaultNarrationVoice
	}

	opts := []tts.Option{
		tts.WithAPIKey(apiKey),
		tts.WithVoice(tts.ResolveElevenLabsVoice(voice)),
		tts.WithModel(*model),
		tts.WithSessionTimeout(*timeout),
	}
	if *inlineAuth {
		opts = append(opts, tts.WithAuthMode(tts.AuthInline))
	}
	stream, err := tts.NewElevenLabsStream(opts...)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listVoices {
		if err := printVoices(ctx, stream); err != nil {
			fmt.Printf("❌ Failed to list voices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("🎤 Voice: %s (%s)\n", voice, stream.VoiceID())
	fmt.Printf("🧠 Model: %s\n", stream.ModelID())
	fmt.Printf("🔁 Runs: %d\n\n", *runs)

	if err := stream.Health(ctx); err != nil {
		fmt.Printf("❌ Health check failed: %v\n", err)
		os.Exit(1)
	}

	var samples []sample
	for i := 1; i <= *runs; i++ {
		if ctx.Err() != nil {
			break
		}
		s := runOnce(ctx, stream, *text)
		samples = append(samples, s)
		if s.err != nil {
			fmt.Printf("   #%-3d ❌ %v\n", i, s.err)
			continue
		}
		fmt.Printf("   #%-3d ⚡ first audio %4dms  total %6s  %7d bytes  %3d fragments  %d timing\n",
			i, s.firstAudio.Milliseconds(), s.total.Round(time.Millisecond), s.bytes, s.fragments, s.timing)
	}

	printSummary(summarize(samples))
}

func runOnce(ctx context.Context, synth tts.Synthesizer, script string) sample {
	start := time.Now()
	result, err := synth.RunSession(ctx, script, uuid.NewString())
	s := sample{total: time.Since(start), err: err}
	if err != nil {
		return s
	}
	s.firstAudio = time.Duration(result.FirstAudioMs) * time.Millisecond
	s.bytes = len(result.Audio)
	s.fragments = result.Fragments
	s.timing = len(result.Timing)
	return s
}

func printVoices(ctx context.Context, stream *tts.ElevenLabsStream) error {
	voices, err := stream.ListVoices(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n🎤 Available Voices (%d):\n\n", len(voices))
	fmt.Printf("%-30s %-25s %s\n", "NAME", "VOICE ID", "CATEGORY")
	fmt.Println(strings.Repeat("-", 80))
	for _, v := range voices {
		name := v.Name
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		fmt.Printf("%-30s %-25s %s\n", name, v.VoiceID, v.Category)
	}

	fmt.Println("\nNarration presets:")
	for _, p := range tts.NarrationVoices {
		fmt.Printf("  %-10s %-25s %s, %s\n", p.Name, p.ID, p.Accent, p.Style)
	}
	fmt.Println()
	return nil
}

func printSummary(s summary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("📊 LATENCY SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("   Sessions:   %d ok, %d failed\n", s.ok, s.failed)
	if s.ok == 0 {
		return
	}
	fmt.Printf("   First audio: min %v  avg %v  p95 %v  max %v\n", s.firstMin, s.firstAvg, s.firstP95, s.firstMax)
	fmt.Printf("   Session:     avg %v\n", s.totalAvg)
	fmt.Printf("   Audio:       avg %d bytes\n", s.bytesAvg)
}

func maskKey(key string) string {
	if len(key) <= 14 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..." + key[len(key)-4:]
}
