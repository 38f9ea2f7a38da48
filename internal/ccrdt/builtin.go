package ccrdt

// NotACCRDTType names a plain, non-CCRDT data type used throughout
// spec.md's scenarios (the "NON" type). It is deliberately never
// registered: IsCCRDT must answer false for it.
const NotACCRDTType Type = "not_a_ccrdt"

// DefaultRegistry returns a Registry pre-populated with the three CCRDT
// types used across this module's scenarios and tests: "topk",
// "topk_with_deletes" and "average".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TopKType, NewTopK())
	r.Register(TopKWithDeletesType, NewTopKWithDeletes())
	r.Register(AverageType, NewAverage())
	return r
}
