package estop

// FakeReader is a test double with a scriptable pressed state.
type FakeReader struct {
	// Down controls the value returned by Pressed.
	Down bool

	// ReadError, if set, will be returned by Pressed.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a FakeReader in the released state.
func NewFakeReader() *FakeReader {
	return &FakeReader{}
}

// Pressed returns the scripted state.
func (f *FakeReader) Pressed() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Down, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
