package journal

import "bytes"

// memFile is an in-memory file with injectable failures.
type memFile struct {
	data     bytes.Buffer
	writeErr error
	syncErr  error
	syncs    int
	closed   bool
}

func (m *memFile) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.data.Write(p)
}

func (m *memFile) Sync() error {
	m.syncs++
	return m.syncErr
}

func (m *memFile) Close() error {
	m.closed = true
	return nil
}
