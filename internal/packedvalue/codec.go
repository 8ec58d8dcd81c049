package packedvalue

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Errors returned by Unpack. No value is ever half-consumed on failure:
// every branch below either fully decodes a value or returns before
// touching the stream further.
var (
	ErrShortRead       = errors.New("packedvalue: short read")
	ErrTypeMismatch    = errors.New("packedvalue: type mismatch")
	ErrMalformedLength = errors.New("packedvalue: malformed length")
)

// maxContainerLen bounds array/map lengths so a corrupt or hostile length
// prefix can't make Unpack attempt to allocate an unbounded slice.
const maxContainerLen = 1 << 24

// leading msgpack format bytes, per the wire spec (not a library detail):
// used only to classify what kind of value follows so Unpack can call the
// right typed decoder method.
const (
	codeNilByte       = 0xc0
	codeFalseByte     = 0xc2
	codeTrueByte      = 0xc3
	codeBin8          = 0xc4
	codeBin32         = 0xc6
	codeFloat32       = 0xca
	codeFloat64       = 0xcb
	codeUint8         = 0xcc
	codeUint64        = 0xcf
	codeInt8          = 0xd0
	codeInt64         = 0xd3
	codeFixstrLow     = 0xa0
	codeFixstrHigh    = 0xbf
	codeStr8          = 0xd9
	codeStr32         = 0xdb
	codeFixarrayLow   = 0x90
	codeFixarrayHigh  = 0x9f
	codeArray16       = 0xdc
	codeArray32       = 0xdd
	codeFixmapLow     = 0x80
	codeFixmapHigh    = 0x8f
	codeMap16         = 0xde
	codeMap32         = 0xdf
	codeNegFixintLow  = 0xe0
	codePosFixintHigh = 0x7f
)

// NewEncoder and NewDecoder are thin re-exports so callers outside this
// package (such as the schema tests) don't need to import vmihailenco/msgpack
// directly; internal/protocol uses EncoderHandle and DecoderHandle instead.
func NewEncoder(w io.Writer) *msgpack.Encoder { return msgpack.NewEncoder(w) }
func NewDecoder(r io.Reader) *msgpack.Decoder { return msgpack.NewDecoder(r) }

// EncoderHandle and DecoderHandle are the package's public entry points for
// stream-oriented callers (internal/protocol's framed Stream) that only
// ever need to push/pull whole Values, never the lower-level msgpack API.
type EncoderHandle struct{ enc *msgpack.Encoder }

func NewEncoderHandle(w io.Writer) *EncoderHandle { return &EncoderHandle{enc: msgpack.NewEncoder(w)} }

// EncodeArray packs elems as a single array Value.
func (h *EncoderHandle) EncodeArray(elems []Value) error {
	return Pack(h.enc, Array(elems))
}

type DecoderHandle struct{ dec *msgpack.Decoder }

func NewDecoderHandle(r io.Reader) *DecoderHandle { return &DecoderHandle{dec: msgpack.NewDecoder(r)} }

// Decode reads one top-level Value.
func (h *DecoderHandle) Decode() (Value, error) {
	return Unpack(h.dec)
}

// Pack writes v to enc. Signed and unsigned integers always take the 9-byte
// int64/uint64 forms and floats the 9-byte float64 form, which keeps the
// signed/unsigned distinction intact across a round trip; the narrower
// encodings that would fit a value are not used.
func Pack(enc *msgpack.Encoder, v Value) error {
	switch v.kind {
	case KindNil:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindInt:
		return enc.EncodeInt64(v.i)
	case KindUint:
		return enc.EncodeUint64(v.u)
	case KindFloat:
		return enc.EncodeFloat64(v.f)
	case KindBytes:
		// EncodeBytes writes a msgpack nil for a nil slice; an empty byte
		// string has to stay a byte string on the wire.
		if v.bytes == nil {
			return enc.EncodeBytes([]byte{})
		}
		return enc.EncodeBytes(v.bytes)
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.array)); err != nil {
			return err
		}
		for _, elem := range v.array {
			if err := Pack(enc, elem); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := enc.EncodeMapLen(len(v.m)); err != nil {
			return err
		}
		for _, e := range v.m {
			if err := Pack(enc, e.Key); err != nil {
				return err
			}
			if err := Pack(enc, e.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("packedvalue: pack: unknown kind %d", v.kind)
}

// Unpack reads one value of any kind from dec.
func Unpack(dec *msgpack.Decoder) (Value, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return Value{}, shortReadOr(err)
	}

	switch {
	case code == codeNilByte:
		if err := dec.DecodeNil(); err != nil {
			return Value{}, shortReadOr(err)
		}
		return Nil(), nil

	case code == codeFalseByte || code == codeTrueByte:
		b, err := dec.DecodeBool()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		return Bool(b), nil

	case code <= codePosFixintHigh, code >= codeNegFixintLow, code >= codeInt8 && code <= codeInt64:
		i, err := dec.DecodeInt64()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		return Int(i), nil

	case code >= codeUint8 && code <= codeUint64:
		u, err := dec.DecodeUint64()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		return Uint(u), nil

	case code == codeFloat32:
		f, err := dec.DecodeFloat32()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		return Float(float64(f)), nil

	case code == codeFloat64:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		return Float(f), nil

	case code >= codeBin8 && code <= codeBin32,
		(code >= codeFixstrLow && code <= codeFixstrHigh),
		code >= codeStr8 && code <= codeStr32:
		b, err := dec.DecodeBytes()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		return Bytes(b), nil

	case (code >= codeFixarrayLow && code <= codeFixarrayHigh),
		code == codeArray16, code == codeArray32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		if n < 0 || n > maxContainerLen {
			return Value{}, ErrMalformedLength
		}
		elems := make([]Value, n)
		for i := 0; i < n; i++ {
			elems[i], err = Unpack(dec)
			if err != nil {
				return Value{}, err
			}
		}
		return Array(elems), nil

	case (code >= codeFixmapLow && code <= codeFixmapHigh),
		code == codeMap16, code == codeMap32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Value{}, shortReadOr(err)
		}
		if n < 0 || n > maxContainerLen {
			return Value{}, ErrMalformedLength
		}
		entries := make([]Entry, n)
		for i := 0; i < n; i++ {
			k, err := Unpack(dec)
			if err != nil {
				return Value{}, err
			}
			v, err := Unpack(dec)
			if err != nil {
				return Value{}, err
			}
			entries[i] = Entry{Key: k, Value: v}
		}
		return Map(entries), nil

	default:
		return Value{}, fmt.Errorf("%w: unrecognized lead byte 0x%02x", ErrTypeMismatch, code)
	}
}

func shortReadOr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortRead
	}
	return err
}

// UnpackExpect decodes one value and requires it to be of kind want.
func UnpackExpect(dec *msgpack.Decoder, want Kind) (Value, error) {
	v, err := Unpack(dec)
	if err != nil {
		return Value{}, err
	}
	if v.kind != want {
		return Value{}, fmt.Errorf("%w: wanted kind %d, got %d", ErrTypeMismatch, want, v.kind)
	}
	return v, nil
}
