// Package model defines core types used throughout sentvec.
//
// # Identity Types
//
//   - ID: Caller supplied document identifier (uint64). Indexed documents
//     always carry one; transient queries do not.
//
// # Data Types
//
//   - Content: Tagged variant holding either raw text or a token sequence
//   - Document: Optional ID, Content and optional Tags
//   - Result: Search hit with ID and similarity score
//
// # Construction
//
//	doc := model.NewDocument(42, model.Text("the quick brown fox"), nil)
//	q := model.Query(model.Tokens("quick", "fox"))
package model
