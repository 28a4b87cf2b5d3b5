package types

import (
	"errors"
	"fmt"
)

// PropertyType enumerates the kinds of values a property can hold.
// The materializer dispatches exhaustively over these tags: a new tag must
// be added together with a new dispatch case, never handled by a silent
// default.
type PropertyType int

const (
	TypeBool PropertyType = iota
	TypeInt
	TypeFloat
	TypeDouble
	TypeString
	TypeData
	TypeAny
	TypeDate
	TypeObject
	TypeList
)

// propertyTypeNames maps tags to the names used in schema files and
// diagnostics.
var propertyTypeNames = map[PropertyType]string{
	TypeBool:   "bool",
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeDouble: "double",
	TypeString: "string",
	TypeData:   "data",
	TypeAny:    "any",
	TypeDate:   "date",
	TypeObject: "object",
	TypeList:   "list",
}

// String returns the schema-file name of the tag.
func (t PropertyType) String() string {
	if name, ok := propertyTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PropertyType(%d)", int(t))
}

// ParsePropertyType maps a schema-file type name to its tag.
// Returns ErrUnknownPropertyType for unrecognized names.
func ParsePropertyType(name string) (PropertyType, error) {
	for tag, n := range propertyTypeNames {
		if n == name {
			return tag, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPropertyType, name)
}

// Property declares one named slot of an object type.
type Property struct {
	Name       string       // Unique within the schema.
	Type       PropertyType // One of the PropertyType tags.
	ObjectType string       // Target type name; required for Object and List.
	Column     int          // Storage column index within the row.
	IsPrimary  bool         // Primary key marker; at most one per schema.
}

// Schema describes the ordered property layout of one object type.
// A Schema is immutable for the duration of a materialization call and is
// owned by the caller.
type Schema struct {
	Name       string
	Properties []Property
}

// Schema validation errors.
var (
	ErrInvalidSchema         = errors.New("invalid schema")
	ErrUnknownPropertyType   = errors.New("unknown property type")
	ErrDuplicateProperty     = errors.New("duplicate property name")
	ErrMultiplePrimaryKeys   = errors.New("schema declares more than one primary key")
	ErrInvalidPrimaryKeyType = errors.New("primary key must be an int or string property")
	ErrMissingObjectType     = errors.New("object and list properties require a target object type")
)

// PropertyForName returns the property with the given name, or nil if the
// schema does not declare it.
func (s *Schema) PropertyForName(name string) *Property {
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i]
		}
	}
	return nil
}

// PrimaryKeyProperty returns the property marked IsPrimary, or nil if the
// schema has no primary key.
func (s *Schema) PrimaryKeyProperty() *Property {
	for i := range s.Properties {
		if s.Properties[i].IsPrimary {
			return &s.Properties[i]
		}
	}
	return nil
}

// Validate checks that the schema is well-formed: a non-empty name, unique
// property names, at most one primary key of int or string type, and a
// target object type on every Object and List property.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(s.Properties))
	primaries := 0
	for i := range s.Properties {
		p := &s.Properties[i]
		if p.Name == "" {
			return fmt.Errorf("%w: %s has a property with an empty name", ErrInvalidSchema, s.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, s.Name, p.Name)
		}
		seen[p.Name] = true
		if _, ok := propertyTypeNames[p.Type]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownPropertyType, s.Name, p.Name)
		}
		if (p.Type == TypeObject || p.Type == TypeList) && p.ObjectType == "" {
			return fmt.Errorf("%w: %s.%s", ErrMissingObjectType, s.Name, p.Name)
		}
		if p.IsPrimary {
			primaries++
			if primaries > 1 {
				return fmt.Errorf("%w: %s", ErrMultiplePrimaryKeys, s.Name)
			}
			if p.Type != TypeInt && p.Type != TypeString {
				return fmt.Errorf("%w: %s.%s is %s", ErrInvalidPrimaryKeyType, s.Name, p.Name, p.Type)
			}
		}
	}
	return nil
}

// SchemaSet is a read-only lookup of schemas by type name. Nested object
// resolution uses it to find the schema of a link target.
type SchemaSet struct {
	byName  map[string]*Schema
	ordered []*Schema
}

// NewSchemaSet validates each schema and builds the lookup. Object and List
// target type names must resolve to a schema in the same set.
func NewSchemaSet(schemas ...Schema) (*SchemaSet, error) {
	ss := &SchemaSet{byName: make(map[string]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := ss.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate type name %q", ErrInvalidSchema, s.Name)
		}
		ss.byName[s.Name] = &s
		ss.ordered = append(ss.ordered, &s)
	}
	for _, s := range ss.ordered {
		for i := range s.Properties {
			p := &s.Properties[i]
			if p.ObjectType == "" {
				continue
			}
			if _, ok := ss.byName[p.ObjectType]; !ok {
				return nil, fmt.Errorf("%w: %s.%s targets undeclared type %q",
					ErrInvalidSchema, s.Name, p.Name, p.ObjectType)
			}
		}
	}
	return ss, nil
}

// SchemaFor returns the schema declared for the given type name.
// Returns ErrUnknownObjectType if the name is not in the set.
func (ss *SchemaSet) SchemaFor(name string) (*Schema, error) {
	s, ok := ss.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownObjectType, name)
	}
	return s, nil
}

// Schemas returns the schemas in declaration order.
func (ss *SchemaSet) Schemas() []*Schema {
	return ss.ordered
}
