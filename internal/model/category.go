package model

import (
	"fmt"
	"strings"
)

// Category is an object collection on the controller, named as in the API path
type Category string

const (
	Networks      Category = "networks"
	Ranges        Category = "ranges"
	Hosts         Category = "hosts"
	NetworkGroups Category = "networkgroups"
)

// FlatCategories are the categories holding single address objects
func FlatCategories() []Category {
	return []Category{Networks, Ranges, Hosts}
}

// CleanupOrder is the order categories are reclaimed in. Groups go first so
// their members can become unused.
func CleanupOrder() []Category {
	return []Category{NetworkGroups, Networks, Ranges, Hosts}
}

// RestoreOrder is the order categories are recreated in. Groups go last so
// their members already exist.
func RestoreOrder() []Category {
	return []Category{Hosts, Ranges, Networks, NetworkGroups}
}

// IsGroup reports whether the category holds groups
func (c Category) IsGroup() bool {
	return c == NetworkGroups
}

// Label is the human form used in prompts and log lines
func (c Category) Label() string {
	switch c {
	case Networks:
		return "network"
	case Ranges:
		return "range"
	case Hosts:
		return "host"
	case NetworkGroups:
		return "group"
	}
	return string(c)
}

// ObjectType is the controller type name of objects in the category
func (c Category) ObjectType() string {
	switch c {
	case Networks:
		return TypeNetwork
	case Ranges:
		return TypeRange
	case Hosts:
		return TypeHost
	case NetworkGroups:
		return TypeNetworkGroup
	}
	return ""
}

// ParseCategory accepts the API name or the label, singular or plural
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "networks", "network":
		return Networks, nil
	case "ranges", "range":
		return Ranges, nil
	case "hosts", "host":
		return Hosts, nil
	case "networkgroups", "networkgroup", "groups", "group":
		return NetworkGroups, nil
	}
	return "", fmt.Errorf("unknown object category %q", s)
}

// ParseCategories parses a comma separated list. The result follows order
// and has no duplicates; an empty list selects every category in order.
func ParseCategories(list string, order []Category) ([]Category, error) {
	if strings.TrimSpace(list) == "" {
		return order, nil
	}
	want := make(map[Category]bool)
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		c, err := ParseCategory(item)
		if err != nil {
			return nil, err
		}
		want[c] = true
	}
	var result []Category
	for _, c := range order {
		if want[c] {
			result = append(result, c)
		}
	}
	return result, nil
}
