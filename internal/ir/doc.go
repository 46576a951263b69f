// Package ir provides the value model shared by every rqe package.
//
// Table items are IRObject values: string keys mapped to the sealed IRValue
// types (IRNull, IRString, IRInt, IRBool, IRArray, IRObject). Query literals,
// index keys and stream payloads are all expressed with these types.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Items are compared by reference identity (SameObject) during index updates
//   - MarshalCanonical is the only serialization used for journals and goldens
package ir
