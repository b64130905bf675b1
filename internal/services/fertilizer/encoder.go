package fertilizer

import (
	"fmt"

	"AgriPulse/internal/domain/errs"
)

// LabelEncoder maps category names to the integer codes a model was trained on.
// Codes are positions in the vocabulary as stored in the artifact.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("label encoder: empty vocabulary: %w", errs.ErrInvalidArgument)
	}
	e := &LabelEncoder{
		classes: append([]string(nil), classes...),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range e.classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("label encoder: duplicate class %q: %w", c, errs.ErrInvalidArgument)
		}
		e.index[c] = i
	}
	return e, nil
}

// Transform returns the code of v, or ErrUnknownCategory.
func (e *LabelEncoder) Transform(v string) (int, error) {
	i, ok := e.index[v]
	if !ok {
		return 0, fmt.Errorf("%q: %w", v, errs.ErrUnknownCategory)
	}
	return i, nil
}

func (e *LabelEncoder) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("class code %d out of range: %w", code, errs.ErrInvalidArgument)
	}
	return e.classes[code], nil
}

func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}
