package mmd

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorType int

const (
	NoError ErrorType = iota
	InvalidHeaderError
	InvalidSignatureError
	InvalidVersionError
	InvalidFlagSizeError
	InvalidFlagsError
	InvalidNameSizeError
	InvalidEnglishNameSizeError
	InvalidCommentSizeError
	InvalidEnglishCommentSizeError
	InvalidVerticesError
	InvalidIndicesError
	InvalidTexturesError
	InvalidMaterialsError
	InvalidBonesError
	InvalidIKConstraintsError
	InvalidMorphsError
	InvalidLabelsError
	InvalidEnglishNamesError
	InvalidCustomToonTexturesError
	InvalidRigidBodiesError
	InvalidJointsError
	InvalidSaveSizeError
	maxErrorType
)

var errorTypeNames = [maxErrorType]string{
	NoError:                        "no error",
	InvalidHeaderError:             "invalid header",
	InvalidSignatureError:          "invalid signature",
	InvalidVersionError:            "invalid version",
	InvalidFlagSizeError:           "invalid flag size",
	InvalidFlagsError:              "invalid flags",
	InvalidNameSizeError:           "invalid name size",
	InvalidEnglishNameSizeError:    "invalid english name size",
	InvalidCommentSizeError:        "invalid comment size",
	InvalidEnglishCommentSizeError: "invalid english comment size",
	InvalidVerticesError:           "invalid vertices",
	InvalidIndicesError:            "invalid indices",
	InvalidTexturesError:           "invalid textures",
	InvalidMaterialsError:          "invalid materials",
	InvalidBonesError:              "invalid bones",
	InvalidIKConstraintsError:      "invalid ik constraints",
	InvalidMorphsError:             "invalid morphs",
	InvalidLabelsError:             "invalid labels",
	InvalidEnglishNamesError:       "invalid english names",
	InvalidCustomToonTexturesError: "invalid custom toon textures",
	InvalidRigidBodiesError:        "invalid rigid bodies",
	InvalidJointsError:             "invalid joints",
	InvalidSaveSizeError:           "invalid save size",
}

func (t ErrorType) String() string {
	if t >= 0 && t < maxErrorType {
		return errorTypeNames[t]
	}
	return fmt.Sprintf("error type %d", int(t))
}

// ParseError is returned by Load, Preparse and Save
type ParseError struct {
	Type ErrorType
	err  error
}

func newParseError(t ErrorType, format string, args ...interface{}) *ParseError {
	return &ParseError{Type: t, err: errors.Errorf(format, args...)}
}

func wrapParseError(t ErrorType, err error, format string, args ...interface{}) *ParseError {
	return &ParseError{Type: t, err: errors.Wrapf(err, format, args...)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", e.Type, e.err)
}

func (e *ParseError) Cause() error {
	return errors.Cause(e.err)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// ErrorTypeOf extracts error code from error chain
func ErrorTypeOf(err error) ErrorType {
	if err == nil {
		return NoError
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return InvalidHeaderError
}
