package tts

// Assemble concatenates audio fragments in the order given.
// It fails with ErrEmptyAudio before allocating anything when there is
// nothing to concatenate, so a zero-length artifact is never produced.
func Assemble(fragments [][]byte) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, ErrEmptyAudio
	}

	size := 0
	for _, f := range fragments {
		size += len(f)
	}
	if size == 0 {
		return nil, ErrEmptyAudio
	}

	out := make([]byte, 0, size)
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out, nil
}
