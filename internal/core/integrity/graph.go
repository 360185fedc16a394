// Package integrity describes the foreign-key graph around deletable entities.
//
// A Definition declares, once per entity type, every table that references the
// entity (directly or through another dependent) and what to do with those rows
// when the entity is purged. Compile validates a Definition against the schema
// and produces a Plan whose steps are ordered children-before-parents.
package integrity

import (
	"fmt"
	"strings"
)

// EntityType tags a top-level record that other records may reference.
type EntityType string

const (
	Customer EntityType = "customer"
	Product  EntityType = "product"
	Supplier EntityType = "supplier"
)

// ParseEntityType accepts the tag case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case Customer, Product, Supplier:
		return t, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// Policy says what a purge does with dependent rows.
type Policy int

const (
	// PolicyDelete removes the dependent rows.
	PolicyDelete Policy = iota
	// PolicyNullify keeps the rows and clears the reference.
	PolicyNullify
)

func (p Policy) String() string {
	switch p {
	case PolicyDelete:
		return "delete"
	case PolicyNullify:
		return "nullify"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// MarshalText renders the policy name in JSON responses.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (p *Policy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "delete":
		*p = PolicyDelete
	case "nullify":
		*p = PolicyNullify
	default:
		return fmt.Errorf("unknown policy %q", text)
	}
	return nil
}

// ForeignKey is one FK constraint of the schema.
type ForeignKey struct {
	Table    string
	Column   string
	RefTable string
	Nullable bool
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s.%s -> %s", fk.Table, fk.Column, fk.RefTable)
}

// Schema is the set of foreign keys the graph is checked against.
// Every FK references the id column of RefTable.
type Schema struct {
	ForeignKeys []ForeignKey
}

// Find returns the FK on table.column pointing at refTable.
func (s Schema) Find(table, column, refTable string) (ForeignKey, bool) {
	for _, fk := range s.ForeignKeys {
		if fk.Table == table && fk.Column == column && fk.RefTable == refTable {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// ReferencesTo lists the FKs pointing at table.
func (s Schema) ReferencesTo(table string) []ForeignKey {
	var out []ForeignKey
	for _, fk := range s.ForeignKeys {
		if fk.RefTable == table {
			out = append(out, fk)
		}
	}
	return out
}

// references reports whether rows of table may hold an FK to refTable.
func (s Schema) references(table, refTable string) bool {
	for _, fk := range s.ForeignKeys {
		if fk.Table == table && fk.RefTable == refTable {
			return true
		}
	}
	return false
}

// Link is one dependent relationship: rows of Table whose Column points at
// rows of Parent. Parent is either the entity table or the table of another
// delete link in the same Definition.
type Link struct {
	// Category names the dependency in reports. Empty means the link is a
	// purge step only and is not reported (e.g. order lines reached through orders).
	Category string
	Table    string
	Column   string
	Parent   string
	Policy   Policy
}

func (l Link) String() string {
	return fmt.Sprintf("%s.%s -> %s (%s)", l.Table, l.Column, l.Parent, l.Policy)
}

// Definition declares the dependents of one entity type.
type Definition struct {
	Type  EntityType
	Table string
	Links []Link
}

// Selector identifies a set of rows: those of Table whose Column matches the
// ids chosen by Parent. The root selector has no parent and matches Column = ID.
type Selector struct {
	Table  string
	Column string
	Parent *Selector
	ID     int64
}

// IsRoot reports whether s selects the entity row itself.
func (s Selector) IsRoot() bool {
	return s.Parent == nil
}

func (s Selector) String() string {
	if s.Parent == nil {
		return fmt.Sprintf("%s[%s=%d]", s.Table, s.Column, s.ID)
	}
	return fmt.Sprintf("%s[%s in %s]", s.Table, s.Column, s.Parent.String())
}
