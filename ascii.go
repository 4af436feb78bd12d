package ftps

import (
	"context"
	"fmt"

	"golang.org/x/text/transform"
)

// TransferType is the representation type negotiated with TYPE.
type TransferType int

const (
	// TypeBinary ("TYPE I") moves bytes unchanged.
	TypeBinary TransferType = iota

	// TypeASCII ("TYPE A") uses CRLF line endings on the wire. Uploads have
	// bare LF converted to CRLF; downloads have CRLF converted to LF. A CR
	// that is not followed by LF is passed through in both directions.
	TypeASCII
)

func (t TransferType) String() string {
	if t == TypeASCII {
		return "ascii"
	}
	return "binary"
}

func (t TransferType) code() string {
	if t == TypeASCII {
		return "A"
	}
	return "I"
}

// SetType switches the transfer type used by subsequent transfers. TYPE is
// only sent if the server is not already using t.
func (c *Client) SetType(ctx context.Context, t TransferType) error {
	if t != TypeBinary && t != TypeASCII {
		return fmt.Errorf("ftps: unknown transfer type %d", int(t))
	}
	if err := c.require("set type", StateReady); err != nil {
		return err
	}
	if err := c.sendType(ctx, t); err != nil {
		return err
	}
	c.transferType = t
	return nil
}

// TransferType returns the type used for transfers.
func (c *Client) TransferType() TransferType {
	return c.transferType
}

// sendType sends TYPE unless the cache says the server already uses t.
func (c *Client) sendType(ctx context.Context, t TransferType) error {
	if c.typeKnown && c.currentType == t {
		return nil
	}
	if _, err := c.expect2xx(ctx, "TYPE", t.code()); err != nil {
		c.typeKnown = false
		return err
	}
	c.currentType = t
	c.typeKnown = true
	return nil
}

// toCRLF converts LF to CRLF, leaving existing CRLF pairs alone.
type toCRLF struct {
	prevCR bool
}

func newCRLFEncoder() transform.Transformer { return &toCRLF{} }

func (t *toCRLF) Reset() { t.prevCR = false }

func (t *toCRLF) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if b == '\n' && !t.prevCR {
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = '\r'
			dst[nDst+1] = '\n'
			nDst += 2
		} else {
			if nDst+1 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = b
			nDst++
		}
		t.prevCR = b == '\r'
		nSrc++
	}
	return nDst, nSrc, nil
}

// fromCRLF converts CRLF to LF. A lone CR is kept.
type fromCRLF struct {
	transform.NopResetter
}

func newCRLFDecoder() transform.Transformer { return fromCRLF{} }

func (fromCRLF) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if b == '\r' {
			if nSrc+1 == len(src) {
				if !atEOF {
					// Need the next byte to know whether this CR ends a line.
					return nDst, nSrc, transform.ErrShortSrc
				}
			} else if src[nSrc+1] == '\n' {
				nSrc++
				continue
			}
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = b
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}
