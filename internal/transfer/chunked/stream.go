package chunked

import (
	"fmt"
	"io"
	"sync"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

// Parallel transfers address the caller's stream by offset. Offsets are
// relative to the stream position at the start of the transfer, so a stream
// that was already partly consumed is transferred from where it stands.

// CanReadAt reports whether r supports positioned reads for a parallel upload.
// It returns an error matching ErrNotSeekable when it does not.
func CanReadAt(r io.Reader) error {
	_, err := streamBase(r)
	if err != nil {
		return err
	}
	if _, ok := r.(io.ReaderAt); ok {
		return nil
	}
	if _, ok := r.(io.Seeker); ok {
		return nil
	}
	return storageerrors.ErrNotSeekable
}

// CanWriteAt reports whether w supports positioned writes for a parallel download.
// It returns an error matching ErrNotSeekable when it does not.
func CanWriteAt(w io.Writer) error {
	_, err := streamBase(w)
	if err != nil {
		return err
	}
	if _, ok := w.(io.WriterAt); ok {
		return nil
	}
	if _, ok := w.(io.Seeker); ok {
		return nil
	}
	return storageerrors.ErrNotSeekable
}

// streamBase probes a seeker for its current position. Pipes and sockets
// advertise Seek but fail the probe.
func streamBase(stream any) (int64, error) {
	s, ok := stream.(io.Seeker)
	if !ok {
		return 0, nil
	}
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storageerrors.ErrNotSeekable, err)
	}
	return pos, nil
}

// finishFunc leaves a seekable stream positioned after the transferred bytes.
type finishFunc func(transferred int64) error

func seekPast(stream any, base int64) finishFunc {
	s, ok := stream.(io.Seeker)
	if !ok {
		return func(int64) error { return nil }
	}
	return func(transferred int64) error {
		_, err := s.Seek(base+transferred, io.SeekStart)
		return err
	}
}

type offsetReaderAt struct {
	r    io.ReaderAt
	base int64
}

func (o offsetReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return o.r.ReadAt(p, o.base+off)
}

// lockedReadSeeker serializes each seek+read pair.
type lockedReadSeeker struct {
	mu   sync.Mutex
	rs   io.ReadSeeker
	base int64
}

func (l *lockedReadSeeker) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.rs.Seek(l.base+off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(l.rs, p)
}

// newReaderAt adapts src for parallel uploads.
func newReaderAt(src io.Reader) (io.ReaderAt, finishFunc, error) {
	if err := CanReadAt(src); err != nil {
		return nil, nil, err
	}
	base, _ := streamBase(src)
	if ra, ok := src.(io.ReaderAt); ok {
		return offsetReaderAt{r: ra, base: base}, seekPast(src, base), nil
	}
	rs := src.(io.ReadSeeker)
	return &lockedReadSeeker{rs: rs, base: base}, seekPast(src, base), nil
}

type offsetWriterAt struct {
	w    io.WriterAt
	base int64
}

func (o offsetWriterAt) WriteAt(p []byte, off int64) (int, error) {
	return o.w.WriteAt(p, o.base+off)
}

// lockedWriteSeeker serializes each seek+write pair.
type lockedWriteSeeker struct {
	mu   sync.Mutex
	ws   io.WriteSeeker
	base int64
}

func (l *lockedWriteSeeker) WriteAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.ws.Seek(l.base+off, io.SeekStart); err != nil {
		return 0, err
	}
	return l.ws.Write(p)
}

// newWriterAt adapts dst for parallel downloads.
func newWriterAt(dst io.Writer) (io.WriterAt, finishFunc, error) {
	if err := CanWriteAt(dst); err != nil {
		return nil, nil, err
	}
	base, _ := streamBase(dst)
	if wa, ok := dst.(io.WriterAt); ok {
		return offsetWriterAt{w: wa, base: base}, seekPast(dst, base), nil
	}
	ws := dst.(io.WriteSeeker)
	return &lockedWriteSeeker{ws: ws, base: base}, seekPast(dst, base), nil
}

// readFullAt fills p from r at off.
func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
