/*
Package atomic provides typed atomic cells for state shared between the
control and render sides of a movie.

Every cell exposes two families of operations:

  - Barrier operations (Load, Store, Swap, CompareAndSwap, FetchAdd, FetchOr,
    FetchAnd, TestAndSet, TestAndClear). These are sequentially consistent and
    are the only ones that may be used to hand a value from one goroutine to
    another, e.g. a presentation timestamp or an image pointer.

  - Relaxed operations (LoadRelaxed, StoreRelaxed, FetchAddRelaxed,
    CompareAndSwapRelaxed). These are meant for statistics and counters that
    nothing else orders against.

The Go memory model offers no ordering weaker than sequential consistency for
sync/atomic, so both families compile to the same instructions. The split is
kept in the API so the intent is visible at every call site. Never turn a
barrier call into a relaxed one.

Cells must not be copied after first use. The storage is unexported so a cell
can only be accessed at its own width.

The Fetch* operations return the value after the operation, unlike sync/atomic
And/Or which return the previous value.
*/
package atomic
