// Package schema compiles table declarations into an index plan and a set of
// generated accessor descriptors.
//
// A declaration names attributes and functions in the query tag grammar:
//
//	Decl{
//		Name:  "users",
//		Attrs: []string{"id(auto)", "email(unique)", "group"},
//		Funcs: []string{"get(id)", "list(group)", "delete(id)", "listen"},
//	}
//
// Every function with attribute parameters demands an index on the sorted
// attribute set. get implies a single-value (map) index, list and group_by
// require a multi-value (multimap) index, unique attributes require a map
// index. Demands that require both kinds on the same attributes are a
// compile error. When nothing demands an index, a plain list index is used.
//
// Compiled schemas are immutable. Lazy compiles a declaration once on first
// use; Registry compiles a fixed set of declarations in one explicit Init
// call.
package schema
