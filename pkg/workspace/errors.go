package workspace

import (
	"errors"
	"io/fs"
	"os"
)

// Category is the stable class of a scratch-space failure.
type Category string

const (
	ErrorInvalidPath      Category = "invalid_path"
	ErrorOutsideWorkspace Category = "outside_workspace"
	ErrorPathNotFound     Category = "path_not_found"
	ErrorPermissionDenied Category = "permission_denied"
	ErrorIO               Category = "io_error"
)

// Error is a categorized scratch-space failure. Err, when set, is the
// underlying OS error and stays reachable through errors.Is.
type Error struct {
	Category Category
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	text := string(e.Category)
	if e.Detail != "" {
		text += ": " + e.Detail
	}
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same category.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Category == e.Category && other.Detail == "" && other.Err == nil
}

func NewError(category Category, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// CategoryFromError returns the category of err, classifying bare OS errors.
func CategoryFromError(err error) Category {
	if err == nil {
		return ""
	}

	var categorized *Error
	switch {
	case errors.As(err, &categorized):
		return categorized.Category
	case errors.Is(err, fs.ErrNotExist):
		return ErrorPathNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrorPermissionDenied
	default:
		return ErrorIO
	}
}

// NormalizeIOError categorizes an OS error raised while doing op. Path
// details are stripped so scratch locations never reach chat replies.
func NormalizeIOError(err error, op string) error {
	if err == nil {
		return nil
	}

	cause := err
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		cause = pathErr.Err
	}

	return &Error{Category: CategoryFromError(err), Detail: op, Err: cause}
}
