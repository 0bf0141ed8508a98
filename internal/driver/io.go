package driver

import (
	"bufio"
	"io"
)

// stdoutWriter adapts an io.Writer (os.Stdout in the common case) to
// interp.StringWriter.
type stdoutWriter struct{ w io.Writer }

func (s stdoutWriter) WriteString(str string) (int, error) { return s.w.Write([]byte(str)) }

// bufioReader adapts an io.Reader to interp.LineReader, buffering
// once at construction so successive read_line calls don't each
// discard whatever the previous call over-read.
type bufioReader struct{ r *bufio.Reader }

func newBufioReader(r io.Reader) bufioReader { return bufioReader{r: bufio.NewReader(r)} }

func (b bufioReader) ReadString(delim byte) (string, error) { return b.r.ReadString(delim) }
