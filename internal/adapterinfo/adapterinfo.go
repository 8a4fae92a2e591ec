package adapterinfo

// Metadata captures static identifiers for the bridge. Centralising the
// values keeps binaries, telemetry and transcript metadata in agreement.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
	Version     string
}

// Info describes the current bridge.
var Info = Metadata{
	Name:        "Whisper STT Bridge",
	BinaryName:  "stt-whisper-bridge",
	Slug:        "stt-whisper-bridge",
	Description: "Host bridge exposing whisper.cpp transcription through opaque context handles.",
	GeneratorID: "stt-whisper-bridge",
	Version:     "0.3.0",
}

// Version returns the bridge version string.
func Version() string {
	return Info.Version
}

// TranscriptMetadata produces the standard metadata payload attached
// to returned transcripts.
func TranscriptMetadata(backend, language string) map[string]string {
	return map[string]string{
		"generator": Info.GeneratorID,
		"version":   Info.Version,
		"backend":   backend,
		"language":  language,
	}
}
