// Package core provides the business logic for resumable, batched CSV
// record imports.
//
// This package is independent of any transport. It can be driven by the web
// handlers, the CLI client or tests without modification.
//
// # Architecture
//
// An import is set up once and then executed one bounded batch at a time:
//
//   - Analysis: [CSVAnalyzer] reads the source once with O(1) memory,
//     counting rows, capturing the header and indexing batch offsets.
//   - Configuration: [ImportConfig] is created from the analysis and never
//     changes afterwards. [ImportConfig.Window] derives the row range of
//     any batch from it.
//   - Mapping: [ColumnPlan] binds each mapped column to a schema field once
//     per batch; [MapValue] coerces a cell into one of a closed set of
//     [MappedValue] variants.
//   - Duplicates: [DuplicateResolver] applies the skip, create_unique or
//     modify policy to the derived record name.
//   - Execution: [BatchImporter.RunBatch] imports one window and reports a
//     [RowResult] per row, folded into [Counters].
//   - Progress: [NewBatchResponse] builds the pull-based JSON response.
//
// # Batch protocol
//
// The server holds no cursor between requests. A client asks for batch 0,
// then 1, and so on, and stops once batch+1 >= numBatches or an error is
// returned:
//
//	resp, err := svc.ImportBatch(ctx, importID, start)
//	if err != nil {
//	    // request-level: session, source file, start out of range, malformed CSV
//	}
//	if resp.Done(start) {
//	    // finished
//	}
//
// # Error Handling
//
// Request-level failures are returned as errors and abort the batch with no
// counters. Row-level failures (missing name, cross-schema modify, invalid
// value, unresolved required reference, store write errors) fail only their
// row. Technical errors are mapped to user-facing messages and support codes
// with [MapError]; [ProtocolMessage] gives the fixed wire wording.
package core
