package api

type Convertible[T any] interface {
	// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
	// It should be responsible for any normalization required to ensure consistency
	// across the API boundary.
	ToAPIType() (T, error)
}

var (
	_ Convertible[Server]       = DomainServer{}
	_ Convertible[Rule]         = DomainRule{}
	_ Convertible[ServerHealth] = DomainServerHealth{}
	_ Convertible[Snapshot]     = DomainSnapshot{}
)

// convertAll converts every item, stopping at the first failure.
func convertAll[T any, C Convertible[T]](items []C) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := item.ToAPIType()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
