// Package query implements the tag-tree DSL shared by queries and handler
// declarations.
//
// Grammar (tags are separated by whitespace or commas):
//
//	attr              bare attribute
//	attr=value        string literal (attr="a b" when quoting is needed)
//	attr=123          integer literal, when the whole token is an integer
//	attr(nested)      nested tag tree; attr: (nested) and attr (nested) are equivalent
//	attr?             optional attribute
//	$attr             parameter named after the attribute
//	attr=$param       explicitly named parameter
//	attr=*            wildcard
//	--flag            shorthand for a true flag
//	a b -> c          inputs and outputs (signatures only, see ParseSignature)
//
// Parse and String round-trip: for every canonical form above,
// Parse(text).String() == text.
//
// ParseFile reads several queries from one source: # starts a comment,
// indented lines continue the previous query, and a semicolon, a blank line
// or a dedent starts a new one.
package query
