package domain

// ParameterCategory selects a family of field definitions on the remote service.
type ParameterCategory int

const (
	CategoryResults ParameterCategory = 1
)

// ResultNode is one extracted field value. Children form the result hierarchy
// (table rows and columns, grouped fields). A parent exclusively owns its
// children and the tree is acyclic.
type ResultNode struct {
	ID         int           `json:"id"`
	DocumentID int           `json:"documentId"`
	ParamDefID int           `json:"paramDefId"`
	Name       string        `json:"name,omitempty"`
	Value      *string       `json:"value"`
	Index      int           `json:"index"`
	Verified   bool          `json:"verified,omitempty"`
	Children   []*ResultNode `json:"children,omitempty"`
}

// StringValue returns the node value, or "" when the remote sent null.
func (n *ResultNode) StringValue() string {
	if n == nil || n.Value == nil {
		return ""
	}
	return *n.Value
}
