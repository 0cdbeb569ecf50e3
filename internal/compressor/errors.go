package compressor

import "errors"

// Errors recorded in Result.Error. Check them with errors.Is or ErrorKind.
var (
	// ErrNotAnImage marks a file that could not be identified as an image.
	// It is an expected outcome and leads to a skip, not a failure.
	ErrNotAnImage = errors.New("not an image")

	// ErrEncode indicates the codec rejected the image or the options.
	ErrEncode = errors.New("encode failed")

	// ErrIO indicates a read, write, stat or rename failure.
	ErrIO = errors.New("i/o failure")
)

// Kind classifies a processing error.
type Kind int

const (
	KindNone Kind = iota
	KindNotAnImage
	KindEncodeFailure
	KindIOFailure
	KindUnknown
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindNotAnImage:
		return "NotAnImage"
	case KindEncodeFailure:
		return "EncodeFailure"
	case KindIOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// ErrorKind classifies err.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotAnImage):
		return KindNotAnImage
	case errors.Is(err, ErrEncode):
		return KindEncodeFailure
	case errors.Is(err, ErrIO):
		return KindIOFailure
	default:
		return KindUnknown
	}
}

// rootCause returns the innermost wrapped error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
