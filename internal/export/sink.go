package export

import (
	"context"
	"errors"
)

// Sink writes a snapshot to durable storage and returns where it landed.
type Sink interface {
	Put(ctx context.Context, snap *Snapshot) (string, error)
}

// Fanout writes to every sink. The location of the first sink is returned;
// failures of any sink are joined into the error.
type Fanout []Sink

func (f Fanout) Put(ctx context.Context, snap *Snapshot) (string, error) {
	if len(f) == 0 {
		return "", errors.New("no export sinks configured")
	}
	var (
		location string
		errs     []error
	)
	for i, s := range f {
		loc, err := s.Put(ctx, snap)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			location = loc
		}
	}
	return location, errors.Join(errs...)
}
