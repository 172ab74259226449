package decode

// Type is the wire type of a Shape.
type Type string

const (
	Structure Type = "structure"
	List      Type = "list"
	Map       Type = "map"
	String    Type = "string"
	Integer   Type = "integer"
	Long      Type = "long"
	Boolean   Type = "boolean"
	Float     Type = "float"
	Double    Type = "double"
	Timestamp Type = "timestamp"
	Blob      Type = "blob"
)

// Shape declares the structure of a response and guides decoding.
type Shape struct {
	Name string
	Type Type

	// Members lists the fields of a Structure.
	Members []Member
	// Member is the element of a List.
	Member *Member
	// Key and Value describe the entries of a Map.
	Key   *Member
	Value *Member

	// ResultWrapper names the element that holds a query-protocol result
	// inside the response root.
	ResultWrapper string
	// Payload names the member that receives a streaming body.
	Payload string
}

// Member is a named reference to a Shape inside a container.
type Member struct {
	Name         string
	Shape        *Shape
	LocationName string
	Flattened    bool
}

// wireName is the element or key name the member appears under.
func (m *Member) wireName() string {
	if m.LocationName != "" {
		return m.LocationName
	}
	return m.Name
}

func (m *Member) elementName(fallback string) string {
	if m == nil {
		return fallback
	}
	if m.LocationName != "" {
		return m.LocationName
	}
	return fallback
}

func (s *Shape) memberByWireName(name string) (*Member, bool) {
	for i := range s.Members {
		if s.Members[i].wireName() == name {
			return &s.Members[i], true
		}
	}
	return nil, false
}

func (s *Shape) describe() string {
	if s == nil {
		return ""
	}
	return s.Name
}

func memberShape(m *Member) *Shape {
	if m == nil {
		return nil
	}
	return m.Shape
}
