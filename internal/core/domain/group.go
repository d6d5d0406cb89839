package domain

// Group is the derived, render-ready bucket of containers for one category or for Other.
type Group struct {
	Key        string      `json:"key"`
	Icon       string      `json:"icon"`
	Containers []Container `json:"containers"`
}

// IsOther reports whether g is the catch-all group.
func (g Group) IsOther() bool {
	return g.Key == OtherKey
}
