package ioutils

import "io"

// WriterCounter counts the bytes written through it; the serializers report
// the total as their io.WriterTo result.
type WriterCounter struct {
	W io.Writer
	N int64
}

func (w *WriterCounter) Write(p []byte) (n int, err error) {
	n, err = w.W.Write(p)
	w.N += int64(n)
	return
}

// ReaderCounter counts the bytes read through it.
type ReaderCounter struct {
	R io.Reader
	N int64
}

func (r *ReaderCounter) Read(p []byte) (n int, err error) {
	n, err = r.R.Read(p)
	r.N += int64(n)
	return
}
