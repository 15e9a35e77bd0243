package response

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const bufferSize = 32 << 10

// clientWriter marks write failures on the transport as disconnects.
type clientWriter struct {
	w io.Writer
}

func (c clientWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		return n, &ClientDisconnectedError{Err: err}
	}
	return n, nil
}

// lazyCompressor creates its codec on the first non-empty write, so an
// empty body allocates no compressor and produces zero bytes.
type lazyCompressor struct {
	dst         io.Writer
	compression Compression
	enc         io.WriteCloser
}

func (l *lazyCompressor) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.enc == nil {
		enc, err := newCodec(l.dst, l.compression)
		if err != nil {
			return 0, err
		}
		l.enc = enc
	}
	return l.enc.Write(p)
}

func (l *lazyCompressor) Close() error {
	if l.enc == nil {
		return nil
	}
	return l.enc.Close()
}

func newCodec(dst io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewWriter(dst), nil
	case Zstd:
		return zstd.NewWriter(dst)
	default:
		return nopCloser{dst}, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// sink is the byte pipeline of one response:
// bufio -> optional codec -> transport.
type sink struct {
	*bufio.Writer
	codec io.Closer
}

func newSink(dst io.Writer, c Compression) *sink {
	var w io.Writer = clientWriter{dst}
	s := &sink{}
	if c != NoCompression {
		lc := &lazyCompressor{dst: w, compression: c}
		s.codec, w = lc, lc
	}
	s.Writer = bufio.NewWriterSize(w, bufferSize)
	return s
}

// Close flushes buffered bytes and finishes the codec stream.
func (s *sink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.codec != nil {
		return s.codec.Close()
	}
	return nil
}
