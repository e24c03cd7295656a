package model

// GroupObject is a NetworkGroup. Members must exist before the group can be created.
type GroupObject struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Objects     []MemberRef `json:"objects,omitempty"`
	Literals    []Literal   `json:"literals,omitempty"`
	Metadata    Metadata    `json:"metadata,omitempty"`
}

// MemberRef references another network object or group. The ID is only valid
// until the referenced object is deleted; restores resolve members by name.
type MemberRef struct {
	Type string `json:"type"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Literal is an inline address embedded in a group
type Literal struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// GroupPayload is the body sent when creating a group
type GroupPayload struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Objects     []MemberRef `json:"objects,omitempty"`
	Literals    []Literal   `json:"literals,omitempty"`
}

// MemberNames returns the names of the group's object members in order
func (g *GroupObject) MemberNames() []string {
	names := make([]string, 0, len(g.Objects))
	for _, m := range g.Objects {
		names = append(names, m.Name)
	}
	return names
}

// GetID returns the group ID, or "" for a nil group
func (g *GroupObject) GetID() string {
	if g == nil {
		return ""
	}
	return g.ID
}
