package binding

import "context"

// bindingSlot marks a position in the cloned tree that a resolved value
// will fill; the int indexes into the collected binding list.
type bindingSlot int

// ResolveObject deep-clones an arbitrary prop tree, replacing every
// embedded binding with its resolved value. Both typed Binding values and
// decoded JSON objects carrying non-empty path+source are recognized;
// everything else is copied through untouched, and the input tree is never
// mutated.
//
// All bindings found in the tree resolve concurrently via ResolveMany, so
// a deep tree pays one round of adapter latency, not one per binding.
func (r *Resolver) ResolveObject(ctx context.Context, tree any, bctx Context) any {
	var bindings []Binding
	skeleton := collectBindings(tree, &bindings)

	if len(bindings) == 0 {
		return skeleton
	}

	results := r.ResolveMany(ctx, bindings, bctx)
	return fillSlots(skeleton, results)
}

// collectBindings clones the tree, swapping each binding for a bindingSlot
// and appending the binding to acc in discovery order.
func collectBindings(tree any, acc *[]Binding) any {
	switch node := tree.(type) {
	case Binding:
		*acc = append(*acc, node)
		return bindingSlot(len(*acc) - 1)

	case *Binding:
		if node == nil {
			return nil
		}
		*acc = append(*acc, *node)
		return bindingSlot(len(*acc) - 1)

	case map[string]any:
		if b, isBinding := bindingFromMap(node); isBinding {
			*acc = append(*acc, b)
			return bindingSlot(len(*acc) - 1)
		}
		clone := make(map[string]any, len(node))
		for key, value := range node {
			clone[key] = collectBindings(value, acc)
		}
		return clone

	case []any:
		clone := make([]any, len(node))
		for i, value := range node {
			clone[i] = collectBindings(value, acc)
		}
		return clone

	default:
		return tree
	}
}

// fillSlots replaces every bindingSlot in the cloned skeleton with its
// resolved value. The skeleton is our own clone, so in-place writes are
// safe.
func fillSlots(tree any, results []Resolved) any {
	switch node := tree.(type) {
	case bindingSlot:
		return results[int(node)].Value

	case map[string]any:
		for key, value := range node {
			node[key] = fillSlots(value, results)
		}
		return node

	case []any:
		for i, value := range node {
			node[i] = fillSlots(value, results)
		}
		return node

	default:
		return tree
	}
}
