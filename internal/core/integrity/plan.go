package integrity

import (
	"errors"
	"fmt"
)

// Plan is a compiled Definition.
type Plan struct {
	Type  EntityType
	Table string

	// Steps holds every link in execution order: a link runs before any
	// delete link whose rows it references or selects through.
	Steps []Link

	// Reported holds the categorized links in declaration order.
	Reported []Link

	// deleted maps the table of each delete link to the link itself.
	deleted map[string]Link
}

// Root selects the entity row.
func (p *Plan) Root(id int64) Selector {
	return Selector{Table: p.Table, Column: "id", ID: id}
}

// Selector resolves the rows a link touches for entity id, walking the
// parent chain back to the entity row.
func (p *Plan) Selector(l Link, id int64) Selector {
	var parent Selector
	if l.Parent == p.Table {
		parent = p.Root(id)
	} else {
		parent = p.Selector(p.deleted[l.Parent], id)
	}
	return Selector{Table: l.Table, Column: l.Column, Parent: &parent}
}

// Compile validates def against schema and orders its links.
//
// It rejects links without a matching FK, nullify links on NOT NULL columns,
// parents that are not deleted by the same plan, duplicate categories, cycles,
// and any FK into a deleted table that no link covers.
func Compile(schema Schema, def Definition) (*Plan, error) {
	if def.Type == "" || def.Table == "" {
		return nil, errors.New("definition needs a type and a table")
	}

	var errs []error
	plan := &Plan{
		Type:    def.Type,
		Table:   def.Table,
		deleted: make(map[string]Link),
	}

	for _, l := range def.Links {
		if l.Policy != PolicyDelete {
			continue
		}
		if l.Table == def.Table {
			errs = append(errs, fmt.Errorf("%s: link %s deletes the entity table", def.Type, l))
			continue
		}
		if prev, dup := plan.deleted[l.Table]; dup {
			errs = append(errs, fmt.Errorf("%s: table %s is deleted by both %s and %s", def.Type, l.Table, prev, l))
			continue
		}
		plan.deleted[l.Table] = l
	}

	categories := make(map[string]bool)
	covered := make(map[ForeignKey]bool)
	for _, l := range def.Links {
		if l.Table == "" || l.Column == "" || l.Parent == "" {
			errs = append(errs, fmt.Errorf("%s: incomplete link %+v", def.Type, l))
			continue
		}

		fk, ok := schema.Find(l.Table, l.Column, l.Parent)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: link %s has no matching foreign key", def.Type, l))
			continue
		}
		if covered[fk] {
			errs = append(errs, fmt.Errorf("%s: foreign key %s declared twice", def.Type, fk))
		}
		covered[fk] = true

		if l.Policy == PolicyNullify && !fk.Nullable {
			errs = append(errs, fmt.Errorf("%s: link %s nullifies a NOT NULL column", def.Type, l))
		}

		if l.Parent != def.Table {
			if _, ok := plan.deleted[l.Parent]; !ok {
				errs = append(errs, fmt.Errorf("%s: link %s hangs off %s which the plan does not delete", def.Type, l, l.Parent))
			}
		}

		if l.Category != "" {
			if categories[l.Category] {
				errs = append(errs, fmt.Errorf("%s: category %q declared twice", def.Type, l.Category))
			}
			categories[l.Category] = true
			plan.Reported = append(plan.Reported, l)
		}
	}

	// Every FK into a table that disappears must be handled, otherwise the
	// purge either fails on the constraint or orphans the reference.
	gone := []string{def.Table}
	for _, l := range def.Links {
		if l.Policy == PolicyDelete {
			gone = append(gone, l.Table)
		}
	}
	for _, table := range gone {
		for _, fk := range schema.ReferencesTo(table) {
			if !covered[fk] {
				errs = append(errs, fmt.Errorf("%s: foreign key %s is not covered", def.Type, fk))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	steps, err := order(schema, def.Links)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Type, err)
	}
	plan.Steps = steps

	return plan, nil
}

// order sorts links so that each runs before the delete links it depends on.
// Ties keep declaration order.
func order(schema Schema, links []Link) ([]Link, error) {
	n := len(links)
	before := make([][]int, n) // before[i] lists the links that must wait for i
	indegree := make([]int, n)

	for i, a := range links {
		for j, b := range links {
			if i == j || b.Policy != PolicyDelete {
				continue
			}
			if a.Parent == b.Table || schema.references(a.Table, b.Table) {
				before[i] = append(before[i], j)
				indegree[j]++
			}
		}
	}

	sorted := make([]Link, 0, n)
	done := make([]bool, n)
	for len(sorted) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := 0; i < n; i++ {
				if !done[i] {
					stuck = append(stuck, links[i].String())
				}
			}
			return nil, fmt.Errorf("dependency cycle among %v", stuck)
		}

		done[next] = true
		sorted = append(sorted, links[next])
		for _, j := range before[next] {
			indegree[j]--
		}
	}

	return sorted, nil
}

// Registry holds the compiled plans of every entity type.
type Registry struct {
	schema Schema
	plans  map[EntityType]*Plan
	types  []EntityType
}

// NewRegistry compiles all definitions. Any invalid definition fails the whole registry.
func NewRegistry(schema Schema, defs ...Definition) (*Registry, error) {
	r := &Registry{
		schema: schema,
		plans:  make(map[EntityType]*Plan, len(defs)),
	}

	var errs []error
	for _, def := range defs {
		if _, dup := r.plans[def.Type]; dup {
			errs = append(errs, fmt.Errorf("entity type %s defined twice", def.Type))
			continue
		}
		plan, err := Compile(schema, def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.plans[def.Type] = plan
		r.types = append(r.types, def.Type)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return r, nil
}

// Plan returns the compiled plan for t.
func (r *Registry) Plan(t EntityType) (*Plan, bool) {
	p, ok := r.plans[t]
	return p, ok
}

// Types lists the registered entity types in registration order.
func (r *Registry) Types() []EntityType {
	return append([]EntityType(nil), r.types...)
}

// Schema returns the schema the registry was compiled against.
func (r *Registry) Schema() Schema {
	return r.schema
}
