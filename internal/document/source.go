package document

import (
	"github.com/nikhilbhutani/docreader/internal/apperr"
)

// Source is where a PDF comes from: either Bytes or Path.
type Source interface {
	source()
}

// Bytes is a PDF held in memory.
type Bytes []byte

// Path is a PDF on the local filesystem.
type Path string

func (Bytes) source() {}
func (Path) source()  {}

// SourceFrom builds a Source from two optional values. Exactly one must be
// set.
func SourceFrom(data []byte, path string) (Source, error) {
	switch {
	case len(data) > 0 && path != "":
		return nil, apperr.InvalidRequest("provide either document bytes or a path, not both")
	case len(data) > 0:
		return Bytes(data), nil
	case path != "":
		return Path(path), nil
	default:
		return nil, apperr.InvalidRequest("at least one of document bytes or path must be provided")
	}
}

func validateSource(src Source) error {
	switch s := src.(type) {
	case nil:
		return apperr.InvalidRequest("at least one of document bytes or path must be provided")
	case Bytes:
		if len(s) == 0 {
			return apperr.InvalidRequest("document bytes are empty")
		}
	case Path:
		if s == "" {
			return apperr.InvalidRequest("document path is empty")
		}
	default:
		return apperr.InvalidRequest("unsupported document source %T", src)
	}
	return nil
}
