package ftps

import "io"

// countingReader counts the bytes read through it and reports the running
// total to report, if set.
type countingReader struct {
	r      io.Reader
	report func(total int64)
	total  int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.total += int64(n)
		if cr.report != nil {
			cr.report(cr.total)
		}
	}
	return n, err
}

// countingWriter is the write-side counterpart of countingReader.
type countingWriter struct {
	w      io.Writer
	report func(total int64)
	total  int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.total += int64(n)
		if cw.report != nil {
			cw.report(cw.total)
		}
	}
	return n, err
}

// progressFor binds the configured progress observer to one path.
func (c *Client) progressFor(path string) func(int64) {
	if c.progress == nil {
		return nil
	}
	fn := c.progress
	return func(total int64) { fn(path, total) }
}
