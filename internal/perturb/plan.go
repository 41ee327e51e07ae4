package perturb

import "fmt"

// reportOrder is the order operations appear in metrics reports produced
// for the default plan. Downstream consumers of existing reports depend on
// it, so it is kept independent of execution order.
var reportOrder = []string{
	"noise_3",
	"brightness_1.5",
	"blurred_13",
	"scaled_10",
	"blurred_9",
	"scaled_70",
	"noise_5",
	"noise_9",
	"noise_7",
	"scaled_30",
	"noise_1",
	"scaled_90",
	"brightness_3.0",
	"blurred_5",
	"scaled_50",
	"blurred_1",
	"brightness_0.25",
	"blurred_17",
}

// Plan is an ordered, duplicate-free list of perturbation units applied to
// every source image. The number of units in a plan is the number of
// variants, and therefore detection records, each source contributes.
type Plan struct {
	specs    []Spec
	taxonomy []string
}

// DefaultPlan returns the full battery: every value of every fixed domain,
// 18 units in total.
func DefaultPlan() *Plan {
	var specs []Spec
	for _, k := range Kinds {
		for i, v := range Domain(k) {
			specs = append(specs, Spec{Kind: k, Parameter: v, StepIndex: i})
		}
	}
	return &Plan{
		specs:    specs,
		taxonomy: append([]string(nil), reportOrder...),
	}
}

// NewPlan builds a plan from an explicit list of units. Each unit must be
// valid and operation keys must be unique. The taxonomy follows the order
// of specs.
func NewPlan(specs []Spec) (*Plan, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("plan must contain at least one operation")
	}
	seen := make(map[string]bool, len(specs))
	taxonomy := make([]string, 0, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid plan: %w", err)
		}
		key := s.Key()
		if seen[key] {
			return nil, fmt.Errorf("invalid plan: duplicate operation %s", key)
		}
		seen[key] = true
		taxonomy = append(taxonomy, key)
	}
	return &Plan{
		specs:    append([]Spec(nil), specs...),
		taxonomy: taxonomy,
	}, nil
}

// PlanFromKeys builds a plan from operation keys such as "scaled_10".
func PlanFromKeys(keys []string) (*Plan, error) {
	specs := make([]Spec, 0, len(keys))
	for _, key := range keys {
		s, err := ParseKey(key)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return NewPlan(specs)
}

// ParseKey resolves an operation key back to its Spec.
func ParseKey(key string) (Spec, error) {
	for _, k := range Kinds {
		for i, v := range Domain(k) {
			s := Spec{Kind: k, Parameter: v, StepIndex: i}
			if s.Key() == key {
				return s, nil
			}
		}
	}
	return Spec{}, fmt.Errorf("unknown operation key %q", key)
}

// Specs returns a copy of the plan's units in execution order.
func (p *Plan) Specs() []Spec {
	return append([]Spec(nil), p.specs...)
}

// Len returns the number of units in the plan.
func (p *Plan) Len() int {
	return len(p.specs)
}

// Taxonomy returns the operation keys of the plan in report order.
func (p *Plan) Taxonomy() []string {
	return append([]string(nil), p.taxonomy...)
}

// Contains reports whether key is one of the plan's operation keys.
func (p *Plan) Contains(key string) bool {
	for _, k := range p.taxonomy {
		if k == key {
			return true
		}
	}
	return false
}

// byKind groups the plan's specs by kind, keeping plan positions so results
// can be placed independently of completion order.
func (p *Plan) byKind() map[Kind][]int {
	groups := make(map[Kind][]int)
	for i, s := range p.specs {
		groups[s.Kind] = append(groups[s.Kind], i)
	}
	return groups
}
