// Package stagecfg defines the canonical workflow stage sequence and the
// metadata attached to each stage: persisted status name, the role allowed
// to work the stage, and the folder the file service keeps a book's pages
// in while the book sits in that stage.
//
// Projects enable an ordered subset of the canonical sequence; the
// NextEnabledStage computation is the single source of truth for "where
// does this book go next". Lookups fail closed: an unknown status is a
// configuration error for the caller, never a silent skip.
package stagecfg
