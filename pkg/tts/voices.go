package tts

import "strings"

// Voice is a named ElevenLabs premade voice suited to long-form narration.
type Voice struct {
	Name   string
	ID     string
	Accent string
	Style  string
}

// NarrationVoices lists presets that hold up over multi-minute scripts.
var NarrationVoices = []Voice{
	{Name: "rachel", ID: "21m00Tcm4TlvDq8ikWAM", Accent: "american", Style: "calm"},
	{Name: "charlotte", ID: "XB0fDUnXU5powFXDhCwa", Accent: "british", Style: "warm"},
	{Name: "aria", ID: "9BWtsMINqrJLrRacOk9x", Accent: "american", Style: "expressive"},
	{Name: "sarah", ID: "EXAVITQu4vr4xnSDxMaL", Accent: "american", Style: "soft"},
	{Name: "lily", ID: "pFZP5JQG7iQjIQuC4Bku", Accent: "british", Style: "raspy"},
	{Name: "george", ID: "JBFqnCBsd6RMkjVDRZzb", Accent: "british", Style: "storyteller"},
	{Name: "daniel", ID: "onwK4e9ZLuTAKqWW03F9", Accent: "british", Style: "authoritative"},
	{Name: "adam", ID: "pNInz6obpgDQGcFmaJgB", Accent: "american", Style: "deep"},
	{Name: "brian", ID: "nPczCjzI2devNBz1zQrb", Accent: "american", Style: "narration"},
}

// DefaultNarrationVoice is used when configuration names no voice.
const DefaultNarrationVoice = "rachel"

// ResolveElevenLabsVoice returns the voice ID for a preset name
// (case-insensitive), or the input unchanged if it is already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if v, ok := LookupVoice(name); ok {
		return v.ID
	}
	return name
}

// LookupVoice finds a preset by name.
func LookupVoice(name string) (Voice, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, v := range NarrationVoices {
		if v.Name == key {
			return v, true
		}
	}
	return Voice{}, false
}
