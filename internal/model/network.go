package model

// Object types reported by the controller for plain network objects.
const (
	TypeNetwork      = "Network"
	TypeRange        = "Range"
	TypeHost         = "Host"
	TypeNetworkGroup = "NetworkGroup"
)

// NetworkObject is a Network, Range or Host object on the controller
type NetworkObject struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Value       string   `json:"value"` // address, CIDR or range literal
	Metadata    Metadata `json:"metadata,omitempty"`
}

// Object is the summary form returned by list queries
type Object struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Metadata holds the subset of controller metadata this tool reads
type Metadata struct {
	ReadOnly *ReadOnly `json:"readOnly,omitempty"`
}

// ReadOnly marks factory provided objects that cannot be deleted
type ReadOnly struct {
	State  bool   `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// IsReadOnly reports whether the object is system owned
func (m Metadata) IsReadOnly() bool {
	return m.ReadOnly != nil && m.ReadOnly.State
}

// Ref returns a member reference pointing at this object
func (o Object) Ref() MemberRef {
	return MemberRef{Type: o.Type, Name: o.Name, ID: o.ID}
}

// GetID returns the object ID, or "" for a nil object
func (o *NetworkObject) GetID() string {
	if o == nil {
		return ""
	}
	return o.ID
}
