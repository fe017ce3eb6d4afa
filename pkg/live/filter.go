package live

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/transitgeo/transitgeo/pkg/transit"
)

// FilterEnv is what a filter expression can see, e.g. `Line == "523"` or `Age < 30`.
type FilterEnv struct {
	Class         string
	Line          string
	Brigade       string
	VehicleNumber string
	Lat           float64
	Lon           float64

	// Age is the number of seconds since the position was reported.
	Age float64
}

type Filter struct {
	source  string
	program *vm.Program
}

// NewFilter compiles a boolean expression. An empty source gives a nil filter that keeps
// everything.
func NewFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, nil
	}

	program, err := expr.Compile(source, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", source, err)
	}

	return &Filter{source: source, program: program}, nil
}

func (f *Filter) Match(position transit.VehiclePosition, now time.Time) (bool, error) {
	if f == nil {
		return true, nil
	}

	env := FilterEnv{
		Class:         string(position.Class),
		Line:          position.Line,
		Brigade:       position.Brigade,
		VehicleNumber: position.VehicleNumber,
		Lat:           position.Lat,
		Lon:           position.Lon,
		Age:           now.Sub(position.Time).Seconds(),
	}

	output, err := expr.Run(f.program, env)
	if err != nil {
		return false, err
	}

	matched, _ := output.(bool)
	return matched, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}
