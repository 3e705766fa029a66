package spoke

// Filter restricts an iteration to archetypes whose signature matches.
// A nil *Filter matches every archetype.
type Filter struct {
	// The archetype needs to have this component type
	With *ComponentType

	// The archetype must not have this component type
	Without *ComponentType

	// An arbitrary predicate over the signature of the archetype
	Predicate func(sig Signature) bool

	// More Filters, each combined with an or.
	Or []Filter
}

func WithType(ty *ComponentType) *Filter {
	return &Filter{With: ty}
}

func WithoutType(ty *ComponentType) *Filter {
	return &Filter{Without: ty}
}

func Where(predicate func(sig Signature) bool) *Filter {
	return &Filter{Predicate: predicate}
}

func (f *Filter) MatchesSignature(sig Signature) bool {
	if f == nil {
		return true
	}

	if ty := f.With; ty != nil && !sig.Has(ty) {
		return false
	}

	if ty := f.Without; ty != nil && sig.Has(ty) {
		return false
	}

	if f.Predicate != nil && !f.Predicate(sig) {
		return false
	}

	if len(f.Or) == 0 {
		return true
	}

	for idx := range f.Or {
		if f.Or[idx].MatchesSignature(sig) {
			return true
		}
	}

	return false
}
