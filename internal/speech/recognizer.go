package speech

import (
	"strings"
	"sync"
)

// ManualRecognizer is a Recognizer whose transcripts are typed in rather than heard.
// The terminal UI feeds it from an input field.
type ManualRecognizer struct {
	mu           sync.Mutex
	onTranscript func(string)
}

// NewManualRecognizer creates an idle ManualRecognizer
func NewManualRecognizer() *ManualRecognizer {
	return &ManualRecognizer{}
}

// StartListening implements Recognizer
func (r *ManualRecognizer) StartListening(onTranscript func(text string)) error {
	if onTranscript == nil {
		panic("ManualRecognizer: onTranscript cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onTranscript != nil {
		return ErrAlreadyListening
	}
	r.onTranscript = onTranscript
	return nil
}

// StopListening implements Recognizer
func (r *ManualRecognizer) StopListening() {
	r.mu.Lock()
	r.onTranscript = nil
	r.mu.Unlock()
}

// IsListening reports whether a listener is attached
func (r *ManualRecognizer) IsListening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onTranscript != nil
}

// Feed delivers text as a transcript. Blank input is ignored.
func (r *ManualRecognizer) Feed(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	r.mu.Lock()
	cb := r.onTranscript
	r.mu.Unlock()
	if cb == nil {
		return ErrNotListening
	}
	cb(text)
	return nil
}
