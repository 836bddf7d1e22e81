package core

import (
	"context"
	"fmt"

	"gencon/pkg/combinatorics"
	"gencon/pkg/domain"
)

// OrderCreate starts an order for constructs of projectID. Every construct
// must be a fully specified top-level construct of the project.
func (e *Editor) OrderCreate(ctx context.Context, projectID string, constructIDs []string) (domain.Order, domain.Result, error) {
	var created domain.Order
	res, err := e.run(ctx, "order.create", func(tx *txn) error {
		project, err := tx.project(projectID)
		if err != nil {
			return err
		}
		lookup := combinatorics.MapLookup(tx.state().Blocks)
		for _, cid := range constructIDs {
			if indexOf(project.Components, cid) < 0 {
				return fmt.Errorf("construct %s not in project %s: %w", cid, projectID, domain.ErrInvalidParameters)
			}
		}
		if err := requireSpecs(lookup, constructIDs); err != nil {
			return err
		}
		total := 0
		for _, cid := range constructIDs {
			positions, err := combinatorics.PositionalCombinations(lookup, cid, false)
			if err != nil {
				return err
			}
			total += combinatorics.NumberOfCombinations(positions)
		}
		created, err = domain.NewOrder(projectID, constructIDs, total)
		if err != nil {
			return err
		}
		created.ProjectVersion = e.version(projectID)
		tx.apply(ActionOrderCreate, patch{Orders: []domain.Order{created}})
		return nil
	})
	return created, res, err
}

// OrderSetParameters applies assembly parameters, sampling the active
// combinations when only a subset is ordered.
func (e *Editor) OrderSetParameters(ctx context.Context, orderID string, params domain.OrderParameters) (domain.Order, domain.Result, error) {
	return e.updateOrder(ctx, "order.set_parameters", ActionOrderSetParameters, orderID, func(o domain.Order) (domain.Order, error) {
		return o.SetParameters(params, e.cfg.rng)
	})
}

// OrderSetName renames an order.
func (e *Editor) OrderSetName(ctx context.Context, orderID, name string) (domain.Order, domain.Result, error) {
	return e.updateOrder(ctx, "order.set_name", ActionOrderSetName, orderID, func(o domain.Order) (domain.Order, error) {
		return o.SetName(name)
	})
}

// OrderSubmit records acceptance by a foundry and freezes the ordered
// constructs so the order keeps describing what was sent.
func (e *Editor) OrderSubmit(ctx context.Context, orderID, foundry, remoteID string) (domain.Order, domain.Result, error) {
	var submitted domain.Order
	res, err := e.run(ctx, "order.submit", func(tx *txn) error {
		o, err := tx.order(orderID)
		if err != nil {
			return err
		}
		if err := o.Parameters.Validate(o.NumberCombinations); err != nil {
			return err
		}
		if err := requireSpecs(combinatorics.MapLookup(tx.state().Blocks), o.ConstructIDs); err != nil {
			return err
		}
		submitted, err = tx.updateOrder(ActionOrderSubmit, orderID, func(o domain.Order) (domain.Order, error) {
			return o.MarkSubmitted(foundry, remoteID, e.cfg.clock.Now().UTC())
		})
		if err != nil {
			return err
		}
		for _, cid := range o.ConstructIDs {
			if err := tx.freeze(cid); err != nil {
				return err
			}
		}
		return nil
	})
	return submitted, res, err
}

// requireSpecs fails with ErrNotSpec on the first construct that is not
// fully specified.
func requireSpecs(lookup combinatorics.Lookup, constructIDs []string) error {
	for _, cid := range constructIDs {
		spec, err := combinatorics.IsSpec(lookup, cid)
		if err != nil {
			return err
		}
		if !spec {
			return fmt.Errorf("construct %s: %w", cid, domain.ErrNotSpec)
		}
	}
	return nil
}

// OrderCombinations lists the designs an order will assemble: every
// combination of its constructs, narrowed to the active indices when only a
// subset is ordered.
func (e *Editor) OrderCombinations(orderID string) ([][]string, error) {
	st := e.State()
	o, ok := st.Orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
	}
	lookup := combinatorics.MapLookup(st.Blocks)
	var all [][]string
	for _, cid := range o.ConstructIDs {
		combos, err := combinatorics.AllCombinations(lookup, cid)
		if err != nil {
			return nil, err
		}
		all = append(all, combos...)
	}
	if !o.OnlySubset() {
		return all, nil
	}
	return combinatorics.Sample(all, o.ActiveIndices())
}

func (e *Editor) updateOrder(ctx context.Context, op, actionType, id string, fn func(domain.Order) (domain.Order, error)) (domain.Order, domain.Result, error) {
	var updated domain.Order
	res, err := e.run(ctx, op, func(tx *txn) error {
		var err error
		updated, err = tx.updateOrder(actionType, id, fn)
		return err
	})
	return updated, res, err
}
