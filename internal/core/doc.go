// Package core reconciles an uploaded supply spreadsheet with the supply
// catalog and the inventory of one location.
//
// The package holds all domain logic, independent of any transport. It is
// used by the HTTP handlers, by the supplyctl CLI and by tests without
// modification.
//
// # Pipeline
//
// An import moves through four components:
//
//  1. [FileIngester] decodes CSV (any common encoding and delimiter) or
//     xlsx bytes and locates the header row by column synonyms.
//  2. [RowValidator] projects each raw row onto SKU, name and quantity,
//     attaching warnings instead of dropping rows.
//  3. [SkuMatcher] classifies rows as existing or new against a catalog
//     snapshot and loads current quantities for diff display.
//  4. [ApplyEngine] commits the reviewed rows: new supplies are created and
//     qty_on_hand is set absolutely, one isolated row at a time.
//
// Steps 1-3 produce an immutable [ParseResult]. A [Session] wraps it with
// the user's edits and derives the [ApplyRequest]. [Pipeline] ties the two
// calls together as a state machine for callers that keep state, such as
// the CLI.
//
// # Service
//
// [Service] is the entry point for callers. It bounds concurrent imports
// with an [ImportLimiter] and rejects a second apply of the same import id
// with [ErrApplyInProgress].
//
// # Error Handling
//
// Fatal errors ([FormatError], [LocationInvalidError], [RequestError]) stop
// the pipeline. Row failures during apply are embedded in [ApplyResult].
// Technical errors are mapped to user-friendly messages using [MapError]:
//
//   - DB001-DB007: Store errors (duplicates, constraints, connections)
//   - INV001-INV005: Inventory write errors
//   - FILE001-FILE010: File errors (size, encoding, format)
//   - VAL001-VAL002, LOC001: Header and location checks
//   - IMP001-IMP005: Import scheduling errors
//   - RATE001: Rate limiting
package core
