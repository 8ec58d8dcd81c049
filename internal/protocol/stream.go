package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/Limetric/kitchensync/internal/packedvalue"
)

// Stream is the bidirectional, length-delimited typed command channel over
// a byte pipe pair (typically a child process's stdin/stdout). There is no
// envelope beyond the codec's own array framing: every message is a packed
// array whose first element is the command name.
type Stream struct {
	enc *packedvalue.EncoderHandle
	dec *packedvalue.DecoderHandle
}

// New wraps r (peer's output) and w (our output) into a Stream.
func New(r io.Reader, w io.Writer) *Stream {
	return &Stream{
		enc: packedvalue.NewEncoderHandle(w),
		dec: packedvalue.NewDecoderHandle(r),
	}
}

// Command is one decoded message: a name and its positional arguments.
type Command struct {
	Name string
	Args []packedvalue.Value
}

// WriteCommand sends name followed by args as a single packed array.
func (s *Stream) WriteCommand(name string, args ...packedvalue.Value) error {
	elems := make([]packedvalue.Value, 0, len(args)+1)
	elems = append(elems, packedvalue.String(name))
	elems = append(elems, args...)
	if err := s.enc.EncodeArray(elems); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ConnectionLostError{Cause: err}
		}
		return &CodecError{Err: err}
	}
	return nil
}

// WriteReply sends a response frame: a packed array of the reply values,
// with no command name. An ack is an empty array.
func (s *Stream) WriteReply(args ...packedvalue.Value) error {
	if err := s.enc.EncodeArray(args); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ConnectionLostError{Cause: err}
		}
		return &CodecError{Err: err}
	}
	return nil
}

// ReadReply blocks for the peer's next response frame. EOF here is always
// fatal: a reply was owed.
func (s *Stream) ReadReply() ([]packedvalue.Value, error) {
	v, err := s.dec.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, packedvalue.ErrShortRead) {
			return nil, &ConnectionLostError{Cause: err}
		}
		return nil, &CodecError{Err: err}
	}
	elems, ok := v.AsArray()
	if !ok {
		return nil, &CodecError{Err: fmt.Errorf("%w: reply frame is not an array", packedvalue.ErrTypeMismatch)}
	}
	return elems, nil
}

// ReadCommand blocks for the next message and decodes it into a Command.
func (s *Stream) ReadCommand() (Command, error) {
	v, err := s.dec.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Command{}, &ConnectionLostError{Cause: err}
		}
		if errors.Is(err, packedvalue.ErrShortRead) {
			return Command{}, &ConnectionLostError{Cause: err}
		}
		return Command{}, &CodecError{Err: err}
	}
	elems, ok := v.AsArray()
	if !ok {
		return Command{}, &CodecError{Err: fmt.Errorf("%w: command frame is not an array", packedvalue.ErrTypeMismatch)}
	}
	if len(elems) == 0 {
		return Command{}, &CodecError{Err: fmt.Errorf("%w: empty command frame", packedvalue.ErrTypeMismatch)}
	}
	name, ok := elems[0].AsString()
	if !ok {
		return Command{}, &CodecError{Err: fmt.Errorf("%w: command name is not a string", packedvalue.ErrTypeMismatch)}
	}
	return Command{Name: name, Args: elems[1:]}, nil
}
