package merge

import "fmt"

// FatalMergeError reports an unrecoverable failure while merging a single
// model. There is no partial commit and no retry (spec.md §4.3, §7): once
// raised, the destination database is left in an unspecified state and the
// caller is expected to discard it.
type FatalMergeError struct {
	Model string
	Phase string
	Err   error
}

func (e *FatalMergeError) Error() string {
	return fmt.Sprintf("fatal error merging model %q (%s): %v", e.Model, e.Phase, e.Err)
}

func (e *FatalMergeError) Unwrap() error {
	return e.Err
}

// IntegrityWarning reports a post-merge foreign-key violation count for one
// table, surfaced but not fatal (spec.md §4.7 step 7).
type IntegrityWarning struct {
	Table      string
	Violations int
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("warning: %s has %d foreign-key violation(s) after merge", w.Table, w.Violations)
}

// ModelSummary reports how many rows a single model ended up with in the
// destination once its merge finished, modeled on
// hurou927-pg_sub_data/internal/extract/extractor.go's CollectedSummary().
type ModelSummary struct {
	Model      string
	RowsMerged int
}

func (s ModelSummary) String() string {
	return fmt.Sprintf("%s: %d row(s)", s.Model, s.RowsMerged)
}
