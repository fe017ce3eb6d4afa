package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/transitgeo/transitgeo/pkg/transit"
)

// FanOut writes every batch to all of its sinks. A failing sink does not stop the others;
// the joined error is returned.
type FanOut struct {
	Sinks []GeometrySink
}

func NewFanOut(sinks ...GeometrySink) *FanOut {
	return &FanOut{Sinks: sinks}
}

func (f *FanOut) Name() string {
	var names []string
	for _, s := range f.Sinks {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (f *FanOut) AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error {
	var errs []error
	for _, s := range f.Sinks {
		if err := s.AppendRoutes(ctx, table, records); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *FanOut) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	var errs []error
	for _, s := range f.Sinks {
		if err := s.ReplacePositions(ctx, table, records); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *FanOut) Close(ctx context.Context) error {
	return closeAll(ctx, f.Sinks)
}
