// Package speech defines the text-to-speech and speech-to-text collaborators the player talks to.
package speech

import "errors"

// ErrAlreadyListening is returned when StartListening is called twice without StopListening
var ErrAlreadyListening = errors.New("recognizer already listening")

// ErrNotListening is returned when a transcript is fed while nobody listens
var ErrNotListening = errors.New("recognizer not listening")

// Announcer plays text aloud. Speak is fire-and-forget and must not block the caller.
type Announcer interface {
	Speak(text string)
}

// Recognizer turns speech into transcript strings delivered on onTranscript
// until StopListening is called.
type Recognizer interface {
	StartListening(onTranscript func(text string)) error
	StopListening()
}
