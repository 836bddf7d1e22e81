package domain

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"
)

// Combinatorial sampling methods for multi-pot orders.
const (
	MethodRandomSubset         = "Random Subset"
	MethodMaximumUniqueSet     = "Maximum Unique Set"
	defaultCombinatorialMethod = MethodRandomSubset
)

// OrderParameters are the user-chosen assembly settings for an order.
type OrderParameters struct {
	Method              string       `json:"method,omitempty"`
	OnePot              bool         `json:"onePot"`
	SequenceAssemblies  bool         `json:"sequenceAssemblies"`
	Permutations        int          `json:"permutations,omitempty"`
	CombinatorialMethod string       `json:"combinatorialMethod,omitempty"`
	ActiveIndices       map[int]bool `json:"activeIndices,omitempty"`
}

// DefaultOrderParameters returns one-pot parameters, the default for new orders.
func DefaultOrderParameters() OrderParameters {
	return OrderParameters{OnePot: true}
}

// Validate checks parameters against the number of combinations available.
func (p OrderParameters) Validate(numberCombinations int) error {
	if p.OnePot {
		return nil
	}
	if p.CombinatorialMethod != MethodRandomSubset && p.CombinatorialMethod != MethodMaximumUniqueSet {
		return fmt.Errorf("combinatorial method %q: %w", p.CombinatorialMethod, ErrInvalidParameters)
	}
	if p.Permutations < 1 || p.Permutations > numberCombinations {
		return fmt.Errorf("permutations %d of %d: %w", p.Permutations, numberCombinations, ErrInvalidParameters)
	}
	if len(p.ActiveIndices) == 0 {
		return fmt.Errorf("no active indices: %w", ErrInvalidParameters)
	}
	for idx := range p.ActiveIndices {
		if idx < 0 || idx >= numberCombinations {
			return fmt.Errorf("active index %d of %d: %w", idx, numberCombinations, ErrInvalidParameters)
		}
	}
	return nil
}

// OrderStatus records submission to a foundry.
type OrderStatus struct {
	Foundry  string    `json:"foundry,omitempty"`
	RemoteID string    `json:"remoteId,omitempty"`
	TimeSent time.Time `json:"timeSent,omitempty"`
}

// OrderMetadata carries descriptive order fields.
type OrderMetadata struct {
	Name string `json:"name,omitempty"`
}

// Order references constructs of a project to be fabricated.
type Order struct {
	ID                 string          `json:"id"`
	ProjectID          string          `json:"projectId"`
	ProjectVersion     int             `json:"projectVersion,omitempty"`
	ConstructIDs       []string        `json:"constructIds"`
	Parameters         OrderParameters `json:"parameters"`
	NumberCombinations int             `json:"numberCombinations"`
	Status             OrderStatus     `json:"status"`
	Metadata           OrderMetadata   `json:"metadata"`
}

// NewOrder constructs an order. numberCombinations is the total count across
// every referenced construct.
func NewOrder(projectID string, constructIDs []string, numberCombinations int) (Order, error) {
	if projectID == "" {
		return Order{}, fmt.Errorf("project id required: %w", ErrInvalidParameters)
	}
	if len(constructIDs) == 0 {
		return Order{}, fmt.Errorf("construct ids required: %w", ErrInvalidParameters)
	}
	return Order{
		ID:                 NewID(),
		ProjectID:          projectID,
		ConstructIDs:       append([]string(nil), constructIDs...),
		Parameters:         DefaultOrderParameters(),
		NumberCombinations: numberCombinations,
	}, nil
}

// Name returns the order name or a placeholder.
func (o Order) Name() string {
	if o.Metadata.Name == "" {
		return "Untitled Order"
	}
	return o.Metadata.Name
}

// IsSubmitted reports whether the order has been accepted by a foundry.
func (o Order) IsSubmitted() bool {
	return o.Status.Foundry != "" && o.Status.RemoteID != ""
}

// OnlySubset reports whether only some combinations will be assembled.
func (o Order) OnlySubset() bool {
	return !o.Parameters.OnePot && o.Parameters.Permutations < o.NumberCombinations
}

// IsActive reports whether the combination at idx is part of the order.
func (o Order) IsActive(idx int) bool {
	if !o.OnlySubset() {
		return true
	}
	return o.Parameters.ActiveIndices[idx]
}

// ActiveIndices returns the sorted active combination indices.
func (o Order) ActiveIndices() []int {
	out := make([]int, 0, len(o.Parameters.ActiveIndices))
	for idx, on := range o.Parameters.ActiveIndices {
		if on {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func (o Order) mutable() (Order, error) {
	if o.IsSubmitted() {
		return Order{}, fmt.Errorf("order %s: %w", o.ID, ErrOrderSubmitted)
	}
	out := o
	out.ConstructIDs = append([]string(nil), o.ConstructIDs...)
	out.Parameters.ActiveIndices = copyIndices(o.Parameters.ActiveIndices)
	return out, nil
}

// SetName renames the order.
func (o Order) SetName(name string) (Order, error) {
	out, err := o.mutable()
	if err != nil {
		return Order{}, err
	}
	out.Metadata.Name = name
	return out, nil
}

// SetParameters applies parameters, sampling the active combination indices
// when only a subset is requested. rng drives the random subset method.
func (o Order) SetParameters(params OrderParameters, rng *rand.Rand) (Order, error) {
	out, err := o.mutable()
	if err != nil {
		return Order{}, err
	}
	params.ActiveIndices = copyIndices(params.ActiveIndices)
	if !params.OnePot && params.CombinatorialMethod == "" {
		params.CombinatorialMethod = defaultCombinatorialMethod
	}
	if params.OnePot {
		params.SequenceAssemblies = false
	} else {
		params.ActiveIndices = SampleIndices(o.NumberCombinations, params.Permutations, params.CombinatorialMethod, rng)
	}
	if err := params.Validate(o.NumberCombinations); err != nil {
		return Order{}, err
	}
	out.Parameters = params
	return out, nil
}

// MarkSubmitted records acceptance by a foundry; the order is immutable afterwards.
func (o Order) MarkSubmitted(foundry, remoteID string, at time.Time) (Order, error) {
	out, err := o.mutable()
	if err != nil {
		return Order{}, err
	}
	out.Status = OrderStatus{Foundry: foundry, RemoteID: remoteID, TimeSent: at}
	return out, nil
}

// SampleIndices chooses which of total combinations to keep. When permutations
// covers every combination all indices are kept. "Maximum Unique Set" keeps
// evenly spaced indices; "Random Subset" keeps a shuffled prefix.
func SampleIndices(total, permutations int, method string, rng *rand.Rand) map[int]bool {
	out := make(map[int]bool)
	if total <= 0 || permutations <= 0 {
		return out
	}
	keepers := make([]int, 0, total)
	switch {
	case permutations >= total:
		for i := 0; i < total; i++ {
			keepers = append(keepers, i)
		}
	case method == MethodMaximumUniqueSet:
		step := total / permutations
		for i := 0; i < total; i++ {
			if i%step == 0 {
				keepers = append(keepers, i)
			}
		}
	default:
		for i := 0; i < total; i++ {
			keepers = append(keepers, i)
		}
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		rng.Shuffle(len(keepers), func(i, j int) { keepers[i], keepers[j] = keepers[j], keepers[i] })
	}
	if len(keepers) > permutations {
		keepers = keepers[:permutations]
	}
	for _, idx := range keepers {
		out[idx] = true
	}
	return out
}

func copyIndices(in map[int]bool) map[int]bool {
	if in == nil {
		return nil
	}
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
