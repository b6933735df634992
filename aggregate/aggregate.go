// Package aggregate implements the per-group aggregation functions a
// query's return clause may name (§4.7.1): count, count-distinct,
// distinct, sum, avg, min, max, median, variance, stddev, and mode.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
	"github.com/RelationalFabric/relational-fabric-sub000/chash"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
)

// Function is one named aggregation over a variable's bound values.
type Function interface {
	// Variable is the bound variable this aggregate reads.
	Variable() bindings.Var

	// FunctionName is the aggregation's name, e.g. "sum".
	FunctionName() string

	// RequiresValues reports whether Aggregate needs the actual bound
	// values (true for everything but count, which only needs a tally).
	RequiresValues() bool

	// Aggregate computes the result over one group's values, already
	// expanded per-binding to respect multiplicity (§4.7.1).
	Aggregate(values []any) (any, error)
}

// New resolves name to a Function over variable v. Unknown names
// surface as InvalidPattern, matching §7's "unknown aggregation name"
// wording.
func New(name string, v bindings.Var) (Function, error) {
	switch name {
	case "count":
		return CountAggregate{Var: v}, nil
	case "count-distinct":
		return CountDistinctAggregate{Var: v}, nil
	case "distinct":
		return DistinctAggregate{Var: v}, nil
	case "sum":
		return SumAggregate{Var: v}, nil
	case "avg":
		return AvgAggregate{Var: v}, nil
	case "min":
		return MinAggregate{Var: v}, nil
	case "max":
		return MaxAggregate{Var: v}, nil
	case "median":
		return MedianAggregate{Var: v}, nil
	case "variance":
		return VarianceAggregate{Var: v}, nil
	case "stddev":
		return StdDevAggregate{Var: v}, nil
	case "mode":
		return ModeAggregate{Var: v}, nil
	default:
		return nil, rferr.New(rferr.InvalidPattern, fmt.Sprintf("unknown aggregation %q", name))
	}
}

// CountAggregate counts bindings (respecting multiplicity); it never
// needs the actual values.
type CountAggregate struct{ Var bindings.Var }

func (c CountAggregate) Variable() bindings.Var { return c.Var }
func (c CountAggregate) FunctionName() string   { return "count" }
func (c CountAggregate) RequiresValues() bool   { return false }
func (c CountAggregate) Aggregate(values []any) (any, error) {
	return int64(len(values)), nil
}

// CountDistinctAggregate counts the distinct values bound.
type CountDistinctAggregate struct{ Var bindings.Var }

func (c CountDistinctAggregate) Variable() bindings.Var { return c.Var }
func (c CountDistinctAggregate) FunctionName() string   { return "count-distinct" }
func (c CountDistinctAggregate) RequiresValues() bool   { return true }
func (c CountDistinctAggregate) Aggregate(values []any) (any, error) {
	return int64(len(distinct(values))), nil
}

// DistinctAggregate returns the distinct values bound, as a list.
type DistinctAggregate struct{ Var bindings.Var }

func (d DistinctAggregate) Variable() bindings.Var { return d.Var }
func (d DistinctAggregate) FunctionName() string   { return "distinct" }
func (d DistinctAggregate) RequiresValues() bool   { return true }
func (d DistinctAggregate) Aggregate(values []any) (any, error) {
	return distinct(values), nil
}

// SumAggregate sums numeric-coerced values, using int64 arithmetic
// unless any value is a float.
type SumAggregate struct{ Var bindings.Var }

func (s SumAggregate) Variable() bindings.Var { return s.Var }
func (s SumAggregate) FunctionName() string   { return "sum" }
func (s SumAggregate) RequiresValues() bool   { return true }
func (s SumAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return int64(0), nil
	}
	nums, hasFloat, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	if hasFloat {
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum, nil
	}
	var sum int64
	for _, n := range nums {
		sum += int64(n)
	}
	return sum, nil
}

// AvgAggregate averages numeric-coerced values.
type AvgAggregate struct{ Var bindings.Var }

func (a AvgAggregate) Variable() bindings.Var { return a.Var }
func (a AvgAggregate) FunctionName() string   { return "avg" }
func (a AvgAggregate) RequiresValues() bool   { return true }
func (a AvgAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return float64(0), nil
	}
	nums, _, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	return mean(nums), nil
}

// MinAggregate finds the minimum numeric-coerced value.
type MinAggregate struct{ Var bindings.Var }

func (m MinAggregate) Variable() bindings.Var { return m.Var }
func (m MinAggregate) FunctionName() string   { return "min" }
func (m MinAggregate) RequiresValues() bool   { return true }
func (m MinAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	nums, hasFloat, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	min := nums[0]
	for _, n := range nums[1:] {
		if n < min {
			min = n
		}
	}
	return numericResult(min, hasFloat), nil
}

// MaxAggregate finds the maximum numeric-coerced value.
type MaxAggregate struct{ Var bindings.Var }

func (m MaxAggregate) Variable() bindings.Var { return m.Var }
func (m MaxAggregate) FunctionName() string   { return "max" }
func (m MaxAggregate) RequiresValues() bool   { return true }
func (m MaxAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	nums, hasFloat, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	max := nums[0]
	for _, n := range nums[1:] {
		if n > max {
			max = n
		}
	}
	return numericResult(max, hasFloat), nil
}

// MedianAggregate finds the median of numeric-coerced values.
type MedianAggregate struct{ Var bindings.Var }

func (m MedianAggregate) Variable() bindings.Var { return m.Var }
func (m MedianAggregate) FunctionName() string   { return "median" }
func (m MedianAggregate) RequiresValues() bool   { return true }
func (m MedianAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	nums, _, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}

// VarianceAggregate computes the population variance of numeric-
// coerced values.
type VarianceAggregate struct{ Var bindings.Var }

func (v VarianceAggregate) Variable() bindings.Var { return v.Var }
func (v VarianceAggregate) FunctionName() string   { return "variance" }
func (v VarianceAggregate) RequiresValues() bool   { return true }
func (v VarianceAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	nums, _, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	return variance(nums), nil
}

// StdDevAggregate computes the population standard deviation.
type StdDevAggregate struct{ Var bindings.Var }

func (s StdDevAggregate) Variable() bindings.Var { return s.Var }
func (s StdDevAggregate) FunctionName() string   { return "stddev" }
func (s StdDevAggregate) RequiresValues() bool   { return true }
func (s StdDevAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	nums, _, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	return math.Sqrt(variance(nums)), nil
}

// ModeAggregate finds the most-frequent numeric-coerced value, ties
// broken by canonical-hash order for determinism.
type ModeAggregate struct{ Var bindings.Var }

func (m ModeAggregate) Variable() bindings.Var { return m.Var }
func (m ModeAggregate) FunctionName() string   { return "mode" }
func (m ModeAggregate) RequiresValues() bool   { return true }
func (m ModeAggregate) Aggregate(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	nums, hasFloat, err := toNumbers(values)
	if err != nil {
		return nil, err
	}
	counts := map[chash.Token]int{}
	rep := map[chash.Token]any{}
	order := []chash.Token{}
	for _, n := range nums {
		v := numericResult(n, hasFloat)
		tok := chash.MustHash(v)
		if _, ok := rep[tok]; !ok {
			rep[tok] = v
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.Slice(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i].Less(order[j])
	})
	return rep[order[0]], nil
}

func distinct(values []any) []any {
	seen := map[chash.Token]any{}
	order := []chash.Token{}
	for _, v := range values {
		tok := chash.MustHash(v)
		if _, ok := seen[tok]; !ok {
			seen[tok] = v
			order = append(order, tok)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	out := make([]any, len(order))
	for i, tok := range order {
		out[i] = seen[tok]
	}
	return out
}

func mean(nums []float64) float64 {
	var sum float64
	for _, n := range nums {
		sum += n
	}
	return sum / float64(len(nums))
}

func variance(nums []float64) float64 {
	m := mean(nums)
	var acc float64
	for _, n := range nums {
		d := n - m
		acc += d * d
	}
	return acc / float64(len(nums))
}

// numericResult returns an int64 unless hasFloat, matching the
// teacher's int-unless-forced-to-float numeric style.
func numericResult(n float64, hasFloat bool) any {
	if hasFloat {
		return n
	}
	return int64(n)
}

// toNumbers coerces every value to float64, reporting whether any
// original value was a float (so sum/min/max can decide their result
// type), and erroring on non-numeric input.
func toNumbers(values []any) ([]float64, bool, error) {
	out := make([]float64, len(values))
	hasFloat := false
	for i, v := range values {
		f, isFloat, err := toNumber(v)
		if err != nil {
			return nil, false, err
		}
		out[i] = f
		hasFloat = hasFloat || isFloat
	}
	return out, hasFloat, nil
}

func toNumber(v any) (float64, bool, error) {
	switch n := v.(type) {
	case int:
		return float64(n), false, nil
	case int32:
		return float64(n), false, nil
	case int64:
		return float64(n), false, nil
	case float32:
		return float64(n), true, nil
	case float64:
		return n, true, nil
	default:
		return 0, false, rferr.New(rferr.InvalidArgument, fmt.Sprintf("value %v is not numeric", v))
	}
}
