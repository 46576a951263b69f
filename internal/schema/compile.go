package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/query"
)

// hint is what a function says about the index it needs.
type hint int

const (
	hintNone hint = iota
	hintImplySingle
	hintRequireSingle
	hintRequireMulti
)

type demand struct {
	name          string
	attrs         []string
	singleValue   bool
	implySingle   bool
	requireSingle bool
	requireMulti  bool
}

type compiler struct {
	decl    Decl
	s       *Schema
	demands map[string]*demand
	order   []string

	// identity functions requested by the declaration; they need a primary
	// unique index.
	wantsIdentity []string
}

// Compile turns a declaration into a Schema.
func Compile(decl Decl) (*Schema, error) {
	if decl.Name == "" {
		return nil, &CompileError{Message: "table name is required"}
	}
	c := &compiler{
		decl:    decl,
		s:       &Schema{name: decl.Name, decl: decl},
		demands: make(map[string]*demand),
	}

	if err := c.parseAttrs(); err != nil {
		return nil, err
	}

	c.addFunc(Func{Kind: FuncEach, DeclaredName: "each", PublicName: "each"})
	c.addFunc(Func{Kind: FuncInsert, DeclaredName: "insert", PublicName: "insert"})

	for _, text := range decl.Funcs {
		if err := c.parseFunc(text); err != nil {
			return nil, err
		}
	}

	c.materialize()
	if err := c.resolveFuncIndexes(); err != nil {
		return nil, err
	}
	c.choosePrimary()
	if err := c.finishListening(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.buildSteps()
	return c.s, nil
}

// MustCompile is like Compile but panics on error. Use only with constant
// declarations.
func MustCompile(decl Decl) *Schema {
	s, err := Compile(decl)
	if err != nil {
		panic(err)
	}
	return s
}

func (c *compiler) errorf(fn, format string, args ...any) error {
	return &CompileError{Schema: c.decl.Name, Func: fn, Message: fmt.Sprintf(format, args...)}
}

func (c *compiler) parseAttrs() error {
	seen := make(map[string]bool)
	for _, text := range c.decl.Attrs {
		q, err := query.Parse(text)
		if err != nil {
			return c.errorf(text, "invalid attribute declaration: %v", err)
		}
		for _, tag := range q.Tags {
			if tag.Attr == "" || tag.IsParameter || tag.IsFlag {
				return c.errorf(text, "invalid attribute declaration")
			}
			if seen[tag.Attr] {
				return c.errorf(text, "duplicate attribute %q", tag.Attr)
			}
			seen[tag.Attr] = true

			attr, err := c.parseAttrModifiers(text, tag)
			if err != nil {
				return err
			}
			c.s.attrs = append(c.s.attrs, attr)
			if attr.Unique {
				if err := c.addDemand(text, []string{attr.Name}, hintRequireSingle); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *compiler) parseAttrModifiers(text string, tag query.QueryTag) (Attr, error) {
	attr := Attr{Name: tag.Attr}
	if tag.Value == nil {
		return attr, nil
	}
	mods, ok := tag.Nested()
	if !ok {
		return Attr{}, c.errorf(text, "attribute %q: expected modifiers in parentheses", tag.Attr)
	}
	for _, mod := range mods.Tags {
		switch mod.Attr {
		case "auto":
			attr.IsAuto = true
		case "unique":
			attr.Unique = true
			attr.Policy = PolicyError
			if lit, ok := mod.Literal(); ok {
				switch policy := ConflictPolicy(fmt.Sprint(lit)); policy {
				case PolicyError, PolicyOverwrite:
					attr.Policy = policy
				default:
					return Attr{}, c.errorf(text, "unknown unique policy %q (expected error or overwrite)", policy)
				}
			}
		default:
			return Attr{}, c.errorf(text, "unknown attribute modifier %q", mod.Attr)
		}
	}
	return attr, nil
}

func (c *compiler) hasAttr(name string) bool {
	for _, a := range c.s.attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (c *compiler) parseFunc(text string) error {
	q, err := query.Parse(text)
	if err != nil {
		return c.errorf(text, "invalid function declaration: %v", err)
	}
	if q.Len() == 0 {
		return c.errorf(text, "empty function declaration")
	}
	for _, tag := range q.Tags {
		if err := c.declareFunc(text, tag); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) declareFunc(text string, tag query.QueryTag) error {
	verb := tag.Attr
	kind, ok := verbs[verb]
	if !ok || tag.IsParameter || tag.IsFlag {
		return c.errorf(text, "unsupported function %q", verb)
	}

	var params []string
	if tag.Value != nil {
		nested, ok := tag.Nested()
		if !ok {
			return c.errorf(text, "%s: expected attributes in parentheses", verb)
		}
		for _, p := range nested.Tags {
			if p.Attr == "" || p.Value != nil || p.IsParameter || p.IsFlag {
				return c.errorf(text, "%s: invalid parameter %q", verb, p.String())
			}
			if slices.Contains(params, p.Attr) {
				return c.errorf(text, "%s: duplicate parameter %q", verb, p.Attr)
			}
			if len(c.s.attrs) > 0 && !c.hasAttr(p.Attr) {
				return c.errorf(text, "%s: unknown attribute %q", verb, p.Attr)
			}
			params = append(params, p.Attr)
		}
	}

	switch kind {
	case FuncGet:
		if len(params) == 0 {
			c.addSingleValueDemand()
			c.addFunc(Func{Kind: FuncGet, DeclaredName: "get", PublicName: "get", IndexName: SingleValueIndexName})
			return nil
		}
		if err := c.addDemand(text, params, hintImplySingle); err != nil {
			return err
		}
		c.addFunc(newFunc(FuncGet, "get", params))
		// get(attrs) also declares has(attrs).
		c.addFunc(newFunc(FuncHas, "has", params))

	case FuncHas, FuncDelete:
		if len(params) == 0 {
			return c.errorf(text, "%s requires at least one attribute", verb)
		}
		if err := c.addDemand(text, params, hintNone); err != nil {
			return err
		}
		c.addFunc(newFunc(kind, verb, params))

	case FuncUpdate:
		if len(params) > 0 {
			if err := c.addDemand(text, params, hintNone); err != nil {
				return err
			}
		}
		c.addFunc(newFunc(kind, verb, params))

	case FuncList, FuncGroupBy:
		if len(params) == 0 {
			return c.errorf(text, "%s requires at least one attribute", verb)
		}
		if err := c.addDemand(text, params, hintRequireMulti); err != nil {
			return err
		}
		c.addFunc(newFunc(kind, verb, params))

	case FuncItemEquals, FuncItemToUniqueKey, FuncGetUsingUniqueKey, FuncDeleteUsingUniqueKey, FuncDeleteItem:
		if len(params) > 0 {
			return c.errorf(text, "%s does not take attributes", verb)
		}
		c.wantsIdentity = append(c.wantsIdentity, verb)

	default:
		if len(params) > 0 {
			return c.errorf(text, "%s does not take attributes", verb)
		}
		switch kind {
		case FuncListen:
			c.s.supportsListening = true
		case FuncDiff:
			c.wantsIdentity = append(c.wantsIdentity, verb)
		}
		c.addFunc(newFunc(kind, verb, nil))
	}
	return nil
}

func newFunc(kind FuncKind, verb string, params []string) Func {
	f := Func{Kind: kind, DeclaredName: verb, PublicName: verb, Params: params}
	if len(params) == 0 {
		return f
	}
	f.DeclaredName = verb + "(" + strings.Join(params, " ") + ")"
	joined := strings.Join(params, "_")
	switch kind {
	case FuncHas, FuncGroupBy:
		f.PublicName = verb + "_" + joined
	default:
		f.PublicName = verb + "_with_" + joined
	}
	f.IndexName = IndexName(params)
	return f
}

// addFunc registers f unless a function with the same public name exists.
func (c *compiler) addFunc(f Func) {
	for _, existing := range c.s.funcs {
		if existing.PublicName == f.PublicName {
			return
		}
	}
	c.s.funcs = append(c.s.funcs, f)
}

func (c *compiler) addDemand(text string, attrs []string, h hint) error {
	name := IndexName(attrs)
	d, ok := c.demands[name]
	if !ok {
		d = &demand{name: name, attrs: sortedCopy(attrs)}
		c.demands[name] = d
		c.order = append(c.order, name)
	}
	switch h {
	case hintImplySingle:
		d.implySingle = true
	case hintRequireSingle:
		d.requireSingle = true
	case hintRequireMulti:
		d.requireMulti = true
	}
	if d.requireSingle && d.requireMulti {
		return c.errorf(text, "Index conflict on (%s): cannot require both single and multi value index", name)
	}
	return nil
}

func (c *compiler) addSingleValueDemand() {
	if _, ok := c.demands[SingleValueIndexName]; ok {
		return
	}
	c.demands[SingleValueIndexName] = &demand{name: SingleValueIndexName, singleValue: true}
	c.order = append(c.order, SingleValueIndexName)
}

func (c *compiler) materialize() {
	for _, name := range c.order {
		d := c.demands[name]
		ix := IndexSchema{Name: d.name, Attrs: d.attrs}
		switch {
		case d.singleValue:
			ix.Type = IndexSingleValue
		case d.requireSingle || (d.implySingle && !d.requireMulti):
			ix.Type = IndexMap
		default:
			ix.Type = IndexMultimap
		}
		c.s.indexes = append(c.s.indexes, ix)
	}
	if len(c.s.indexes) == 0 {
		c.s.indexes = []IndexSchema{{Name: ListIndexName, Type: IndexList}}
	}
}

func (c *compiler) resolveFuncIndexes() error {
	if _, ok := c.demands[SingleValueIndexName]; ok && len(c.s.indexes) > 1 {
		return c.errorf("get", "a single value table cannot also have keyed indexes")
	}
	for _, f := range c.s.funcs {
		if f.IndexName == "" {
			continue
		}
		if _, ok := c.s.Index(f.IndexName); !ok {
			return c.errorf(f.DeclaredName, "no index %q", f.IndexName)
		}
	}
	return nil
}

func (c *compiler) choosePrimary() {
	for _, ix := range c.s.indexes {
		if ix.Type == IndexMap && len(ix.Attrs) == 1 {
			c.s.primaryUniqueIndex = ix.Name
			c.s.primaryUniqueAttr = ix.Attrs[0]
			break
		}
	}

	c.s.defaultIndex = c.s.indexes[0].Name
	if c.s.primaryUniqueIndex != "" {
		c.s.defaultIndex = c.s.primaryUniqueIndex
		for _, kind := range []FuncKind{FuncItemEquals, FuncItemToUniqueKey, FuncGetUsingUniqueKey, FuncDeleteUsingUniqueKey, FuncDeleteItem} {
			f := newFunc(kind, kind.String(), nil)
			f.IndexName = c.s.primaryUniqueIndex
			c.addFunc(f)
		}
	}

	for _, ix := range c.s.indexes {
		if ix.Type != IndexMap {
			continue
		}
		constraint := Constraint{IndexName: ix.Name, Attrs: ix.Attrs, Policy: PolicyOverwrite}
		if len(ix.Attrs) == 1 {
			for _, a := range c.s.attrs {
				if a.Name == ix.Attrs[0] && a.Unique {
					constraint.Policy = a.Policy
					constraint.Explicit = true
				}
			}
		}
		c.s.constraints = append(c.s.constraints, constraint)
	}
}

func (c *compiler) finishListening() error {
	if len(c.s.FuncsOfKind(FuncListenToStream)) > 0 {
		c.addFunc(newFunc(FuncReceiveUpdate, "receiveUpdate", nil))
		c.addFunc(newFunc(FuncGetStatus, "getStatus", nil))
	}
	if !c.s.supportsListening {
		return nil
	}

	c.addFunc(newFunc(FuncGetStatus, "getStatus", nil))
	c.addFunc(newFunc(FuncReceiveUpdate, "receiveUpdate", nil))
	c.addFunc(newFunc(FuncDeleteAll, "deleteAll", nil))

	if c.s.primaryUniqueIndex == "" {
		if deletes := c.s.FuncsOfKind(FuncDelete); len(deletes) > 0 {
			return c.errorf(deletes[0].DeclaredName,
				"delete() with listen() requires a primary unique index; deletions cannot be tracked by identity")
		}
		return nil
	}

	c.s.supportsUpdateEvents = true
	// Update events are replayed as a delete on the primary key.
	c.addFunc(newFunc(FuncDelete, "delete", []string{c.s.primaryUniqueAttr}))
	return nil
}

func (c *compiler) validate() error {
	if c.s.primaryUniqueIndex == "" && len(c.wantsIdentity) > 0 {
		return c.errorf(c.wantsIdentity[0], "requires a primary unique index (declare get(attr) or a unique attribute)")
	}
	for _, a := range c.s.attrs {
		if a.IsAuto && a.Unique && a.Policy == PolicyOverwrite {
			return c.errorf(a.Name, "auto attribute cannot use unique=overwrite")
		}
	}
	return nil
}

func (c *compiler) buildSteps() {
	autos := c.s.AutoAttrs()
	if len(autos) > 0 {
		c.s.setup = append(c.s.setup, SetupStep{Kind: SetupAutoCounters})
		for _, a := range autos {
			c.s.preInsert = append(c.s.preInsert, PreInsertStep{AutoAttr: a})
		}
	}
	if c.s.supportsListening {
		c.s.setup = append(c.s.setup, SetupStep{Kind: SetupInitListeners})
	}
}
