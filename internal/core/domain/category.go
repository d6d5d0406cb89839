package domain

import (
	"errors"
	"strings"
)

const (
	// OtherID is the reserved id of the synthesized catch-all category. It is never persisted.
	OtherID = "other"
	// OtherKey is the group key of containers that belong to no category.
	OtherKey = "Other"
	// DefaultOtherIcon is the icon shown for the catch-all group.
	DefaultOtherIcon = "fa-solid fa-box"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateName   = errors.New("category name already exists")
	ErrInvalidCategory = errors.New("invalid category")
	ErrReservedID      = errors.New("category id is reserved")
)

// Category is a user-defined named grouping of containers.
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Members     []string `json:"containers"`
	Position    int      `json:"position"`
}

// Normalize trims the name and drops empty and duplicate members, keeping first occurrence order.
func (c *Category) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	seen := make(map[string]struct{}, len(c.Members))
	members := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		members = append(members, m)
	}
	c.Members = members
}

// Validate reports whether the category can be persisted.
func (c Category) Validate() error {
	if c.ID == OtherID {
		return ErrReservedID
	}
	if c.Name == "" {
		return errors.Join(ErrInvalidCategory, errors.New("name is required"))
	}
	if c.Name == OtherKey {
		return errors.Join(ErrInvalidCategory, errors.New("name \"Other\" is reserved"))
	}
	return nil
}

// HasMember reports whether name is assigned to the category.
func (c Category) HasMember(name string) bool {
	for _, m := range c.Members {
		if m == name {
			return true
		}
	}
	return false
}

// OrderEntry is one value of the order mapping sent to the category store.
type OrderEntry struct {
	Position int `json:"position"`
}
