// Package grouping partitions containers into display groups by category membership.
package grouping

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// Collation used to order group keys. English collation places "automation" before "Media".
var collationTag = language.English

// GroupContainers partitions containers into one group per category plus the catch-all Other group.
// Groups without containers are dropped. Named groups are ordered by locale-aware comparison of
// their key and Other always comes last. A nil categories map yields a single Other group.
//
// When a container is a member of more than one category the last matching category in
// position order (ties broken by id) wins.
func GroupContainers(containers []domain.Container, categories map[string]domain.Category) []domain.Group {
	ordered := orderedCategories(categories)

	byKey := make(map[string]*domain.Group, len(ordered)+1)
	keys := make([]string, 0, len(ordered)+1)
	add := func(key, icon string) {
		if g, ok := byKey[key]; ok {
			g.Icon = icon
			return
		}
		byKey[key] = &domain.Group{Key: key, Icon: icon}
		keys = append(keys, key)
	}
	add(domain.OtherKey, domain.DefaultOtherIcon)
	for _, c := range ordered {
		add(c.Name, c.Icon)
	}

	for _, ct := range containers {
		key := domain.OtherKey
		for _, c := range ordered {
			if c.HasMember(ct.Name) {
				key = c.Name
			}
		}
		g := byKey[key]
		g.Containers = append(g.Containers, ct)
	}

	groups := make([]domain.Group, 0, len(keys))
	for _, k := range keys {
		if g := byKey[k]; len(g.Containers) > 0 {
			groups = append(groups, *g)
		}
	}

	cl := collate.New(collationTag)
	sort.SliceStable(groups, func(i, j int) bool {
		return less(cl, groups[i].Key, groups[j].Key)
	})
	return groups
}

func less(cl *collate.Collator, a, b string) bool {
	if a == domain.OtherKey || b == domain.OtherKey {
		return a != domain.OtherKey && b == domain.OtherKey
	}
	return cl.CompareString(a, b) < 0
}

// orderedCategories fixes the iteration order used for membership resolution.
func orderedCategories(categories map[string]domain.Category) []domain.Category {
	out := make([]domain.Category, 0, len(categories))
	for id, c := range categories {
		if c.ID == "" {
			c.ID = id
		}
		if c.ID == domain.OtherID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedCategories returns the persisted categories in display order: ascending position, then
// locale-aware name order.
func SortedCategories(categories map[string]domain.Category) []domain.Category {
	out := orderedCategories(categories)
	cl := collate.New(collationTag)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return cl.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}
