package pf

// Stats holds the three monotonic counters the spec requires. They are
// plain int64s guarded by Manager's mutex rather than atomics: every PF
// operation already holds that mutex for its whole duration (see §5,
// single-threaded-by-contract), so atomics would add nothing.
type Stats struct {
	LogicalReads   int64
	PhysicalReads  int64
	PhysicalWrites int64
}
