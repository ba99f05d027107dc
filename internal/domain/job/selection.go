package job

// Selection picks the target model(s) of a submission.
// Implementations: ByIndex, ByName, ByNames.
type Selection interface {
	isSelection()
}

// ByIndex targets the catalog entry at Index. The index is resolved when the
// job runs, so an out-of-range index surfaces as a FAILURE, not at submission.
type ByIndex struct{ Index int }

// ByName targets one named model, which must be in the catalog.
type ByName struct{ Name string }

// ByNames fans the prompt out to every named model; all must be in the catalog.
type ByNames struct{ Names []string }

func (ByIndex) isSelection() {}
func (ByName) isSelection()  {}
func (ByNames) isSelection() {}

// DefaultSelection is the first catalog entry.
func DefaultSelection() Selection { return ByIndex{Index: 0} }

// SelectionFrom folds the optional request fields into one Selection.
// Precedence: names (when non-nil, even if empty) > name > index > default.
func SelectionFrom(index *int, name string, names []string) Selection {
	switch {
	case names != nil:
		return ByNames{Names: names}
	case name != "":
		return ByName{Name: name}
	case index != nil:
		return ByIndex{Index: *index}
	default:
		return DefaultSelection()
	}
}
