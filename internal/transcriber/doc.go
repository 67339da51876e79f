// Package transcriber wraps the speech-to-text model behind a small interface.
//
// Two backends are provided: WhisperX launched through uvx, and any
// OpenAI-compatible /audio/transcriptions endpoint (the hosted API or a local
// whisper.cpp server). A backend is created once per process with New, shared
// by every worker, and released with Close at shutdown. When the model cannot
// tolerate concurrent inference, Serialize wraps it so only one call runs at a
// time.
package transcriber
