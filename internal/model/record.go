package model

// FlatRecord is one backed up Network, Range or Host
type FlatRecord struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Value       string `json:"value"`
}

// GroupRecord is one backed up group, tagged with the deletion pass that removed it
type GroupRecord struct {
	Name        string
	Description string
	Type        string
	Objects     []MemberRef
	Literals    []Literal
	Pass        int
}

// ItemError records a per object failure that did not stop the batch
type ItemError struct {
	Name    string
	ID      string
	Message string
}

// Journal actions
const (
	ActionDelete = "delete"
	ActionCreate = "create"
)

// Outcome is a journal entry for a single delete or create attempt
type Outcome struct {
	RunID     string
	Category  Category
	Action    string
	Name      string
	ObjectID  string
	Pass      int
	Succeeded bool
	Message   string
}

// Record converts a fetched object into its backup form
func (o *NetworkObject) Record() FlatRecord {
	return FlatRecord{Name: o.Name, Description: o.Description, Type: o.Type, Value: o.Value}
}

// Record converts a fetched group into its backup form
func (g *GroupObject) Record(pass int) GroupRecord {
	objects := make([]MemberRef, len(g.Objects))
	copy(objects, g.Objects)
	literals := make([]Literal, len(g.Literals))
	copy(literals, g.Literals)
	return GroupRecord{
		Name:        g.Name,
		Description: g.Description,
		Type:        g.Type,
		Objects:     objects,
		Literals:    literals,
		Pass:        pass,
	}
}
