package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Mirror is an append-only external log that receives every appended item
// as one self-contained record.
type Mirror interface {
	Name() string
	Write(ctx context.Context, item Item) error
}

// Multi fans an item out to several mirrors. Every mirror is attempted even
// if an earlier one fails.
type Multi []Mirror

// Name joins the member names.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, mm := range m {
		names[i] = mm.Name()
	}
	return strings.Join(names, "+")
}

// Write writes item to every member.
func (m Multi) Write(ctx context.Context, item Item) error {
	var errs []error
	for _, mm := range m {
		if err := mm.Write(ctx, item); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mm.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Combine returns a single mirror for the non-nil members, or nil.
func Combine(mirrors ...Mirror) Mirror {
	var out Multi
	for _, m := range mirrors {
		if m != nil {
			out = append(out, m)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// encodeRecord renders item as one JSON record.
func encodeRecord(item Item) ([]byte, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encoding feedback item: %w", err)
	}
	return b, nil
}
