package schema

import (
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/ir"
)

// IndexType selects the storage strategy of an index.
type IndexType string

const (
	IndexMap         IndexType = "map"
	IndexMultimap    IndexType = "multimap"
	IndexList        IndexType = "list"
	IndexSingleValue IndexType = "single_value"
)

// Reserved index names.
const (
	ListIndexName        = "list"
	SingleValueIndexName = "single_value"
)

// ConflictPolicy decides what an insert does when a unique key is taken.
type ConflictPolicy string

const (
	PolicyError     ConflictPolicy = "error"
	PolicyOverwrite ConflictPolicy = "overwrite"
)

// Attr is a declared attribute.
type Attr struct {
	Name   string
	IsAuto bool
	Unique bool
	Policy ConflictPolicy
}

// Constraint is a uniqueness rule enforced on insert. Every map index has
// one: explicit unique attributes carry their declared policy, implicit
// ones (from get) overwrite.
type Constraint struct {
	IndexName string
	Attrs     []string
	Policy    ConflictPolicy
	Explicit  bool
}

// IndexSchema describes one index.
type IndexSchema struct {
	Name  string
	Type  IndexType
	Attrs []string
}

// IsSingle reports whether the index holds at most one item per key.
func (ix IndexSchema) IsSingle() bool {
	return ix.Type == IndexMap || ix.Type == IndexSingleValue
}

// IsKeyed reports whether the index is addressed by key.
func (ix IndexSchema) IsKeyed() bool {
	return ix.Type == IndexMap || ix.Type == IndexMultimap
}

// IndexName derives an index name from an attribute set.
func IndexName(attrs []string) string {
	return strings.Join(sortedCopy(attrs), ",")
}

// FuncKind is the closed set of operations a table can bind.
type FuncKind int

const (
	FuncEach FuncKind = iota + 1
	FuncInsert
	FuncGet
	FuncHas
	FuncList
	FuncListAll
	FuncGroupBy
	FuncDelete
	FuncUpdate
	FuncListen
	FuncCount
	FuncDiff
	FuncDeleteAll
	FuncReplaceAll
	FuncUpgradeSchema
	FuncReceiveUpdate
	FuncGetStatus
	FuncListenToStream
	FuncFirst
	FuncStatus
	FuncItemEquals
	FuncItemToUniqueKey
	FuncGetUsingUniqueKey
	FuncDeleteUsingUniqueKey
	FuncDeleteItem
)

var verbs = map[string]FuncKind{
	"each":                   FuncEach,
	"insert":                 FuncInsert,
	"get":                    FuncGet,
	"has":                    FuncHas,
	"list":                   FuncList,
	"listAll":                FuncListAll,
	"group_by":               FuncGroupBy,
	"delete":                 FuncDelete,
	"update":                 FuncUpdate,
	"listen":                 FuncListen,
	"count":                  FuncCount,
	"diff":                   FuncDiff,
	"deleteAll":              FuncDeleteAll,
	"replaceAll":             FuncReplaceAll,
	"upgradeSchema":          FuncUpgradeSchema,
	"receiveUpdate":          FuncReceiveUpdate,
	"getStatus":              FuncGetStatus,
	"listenToStream":         FuncListenToStream,
	"first":                  FuncFirst,
	"status":                 FuncStatus,
	"itemEquals":             FuncItemEquals,
	"item_to_uniqueKey":      FuncItemToUniqueKey,
	"get_using_uniqueKey":    FuncGetUsingUniqueKey,
	"delete_using_uniqueKey": FuncDeleteUsingUniqueKey,
	"deleteItem":             FuncDeleteItem,
}

// String returns the verb of the kind.
func (k FuncKind) String() string {
	for verb, kind := range verbs {
		if kind == k {
			return verb
		}
	}
	return "unknown"
}

// Func describes one generated accessor.
type Func struct {
	Kind FuncKind

	// DeclaredName is the canonical declaration text, e.g. "delete(b)".
	DeclaredName string

	// PublicName is the accessor name, e.g. "delete_with_b".
	PublicName string

	// Params lists the attribute parameters in declared order.
	Params []string

	// IndexName is the index the function reads or writes. Empty for
	// functions that touch every index.
	IndexName string
}

// SetupKind identifies a table initialization step.
type SetupKind int

const (
	SetupAutoCounters SetupKind = iota + 1
	SetupInitListeners
)

// SetupStep runs once when a table is created.
type SetupStep struct {
	Kind SetupKind
}

// PreInsertStep runs before every insert.
type PreInsertStep struct {
	// AutoAttr is assigned the next counter value when absent from the item.
	AutoAttr string
}

// Inserter is the part of a table an Initialize hook may use.
type Inserter interface {
	Insert(item ir.IRObject) (ir.IRObject, error)
}

// Decl is a table declaration. Attrs and Funcs use the query tag grammar.
type Decl struct {
	Name       string
	Attrs      []string
	Funcs      []string
	Initialize func(Inserter) error
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
