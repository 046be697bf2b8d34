package narration

import (
	"errors"

	"github.com/teslashibe/go-narrate/pkg/records"
	"github.com/teslashibe/go-narrate/pkg/tts"
)

// Facade error kinds. Synthesis failures wrap tts.ErrConnection,
// tts.ErrProtocol or tts.ErrEmptyAudio; check with errors.Is.
var (
	ErrRecordNotFound = records.ErrRecordNotFound
	ErrRecordStore    = errors.New("record store unavailable")
	ErrEmptyScript    = errors.New("script is empty")
	ErrStorage        = errors.New("storing audio failed")
	ErrWriteBack      = errors.New("writing results back failed")
)

// Kind names for logs, metrics and events.
const (
	KindRecordNotFound = "record_not_found"
	KindRecordStore    = "record_store"
	KindEmptyScript    = "empty_script"
	KindConnection     = "connection"
	KindProtocol       = "protocol"
	KindEmptyAudio     = "empty_audio"
	KindStorage        = "storage"
	KindWriteBack      = "write_back"
	KindInternal       = "internal"
)

// Classify maps an error returned by Process to its kind name. The step
// sentinels come first: a write-back failure may wrap the store's
// not-found error.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWriteBack):
		return KindWriteBack
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrRecordNotFound):
		return KindRecordNotFound
	case errors.Is(err, ErrRecordStore):
		return KindRecordStore
	case errors.Is(err, ErrEmptyScript):
		return KindEmptyScript
	}

	switch tts.Kind(err) {
	case tts.ErrConnection:
		return KindConnection
	case tts.ErrProtocol:
		return KindProtocol
	case tts.ErrEmptyAudio:
		return KindEmptyAudio
	default:
		return KindInternal
	}
}
