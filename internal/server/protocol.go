// Package server implements the WebSocket gateway for device clients.
//
// Clients exchange two kinds of frames: JSON control messages (text frames)
// and raw Opus audio packets (binary frames). Inbound audio is gated by
// voice activity detection, transcribed, and answered with a synthesized
// reply streamed back as "tts" state messages interleaved with binary Opus
// frames.
package server

// Command types exchanged with device clients.
const (
	// TypeHello is the connection handshake. The server replies with its
	// transport and audio parameters.
	TypeHello = "hello"

	// TypeListen controls capture state: "start", "stop", or "detect", with
	// an optional listen mode ("auto" or "manual").
	TypeListen = "listen"

	// TypeAbort interrupts the current reply turn.
	TypeAbort = "abort"

	// TypeIoT reports device peripheral state descriptors.
	TypeIoT = "iot"

	// TypeTTS is the server-to-client reply state message: "start",
	// "sentence_start" (with text), and "stop".
	TypeTTS = "tts"
)

// Listen and TTS state values.
const (
	StateStart         = "start"
	StateStop          = "stop"
	StateDetect        = "detect"
	StateSentenceStart = "sentence_start"
)

// Listen modes.
const (
	// ModeAuto gates capture with server-side voice activity detection.
	ModeAuto = "auto"

	// ModeManual relies on the client's listen start/stop messages.
	ModeManual = "manual"
)

// Command is the JSON control frame exchanged with device clients. One
// struct covers all message types; unused fields are omitted from the wire.
type Command struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Session string `json:"session,omitempty"`

	Transport   string       `json:"transport,omitempty"`
	AudioParams *AudioParams `json:"audio_params,omitempty"`

	State string `json:"state,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Text  string `json:"text,omitempty"`

	Description any `json:"description,omitempty"`
	States      any `json:"states,omitempty"`
}

// AudioParams describes the audio format negotiated in the hello handshake.
type AudioParams struct {
	Format        string `json:"format,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	FrameDuration int    `json:"frame_duration,omitempty"`
}
