// Package narrorerr holds the sentinel errors for the error taxonomy of
// spec.md §7. Kinds, not types: callers wrap a sentinel with context via
// fmt.Errorf("%w", ...) and test with errors.Is.
package narrorerr

import "errors"

var (
	// ErrEntryNotFound: the entry file is absent or unreadable. Fatal.
	ErrEntryNotFound = errors.New("entry file not found or unreadable")

	// ErrDependencyExtractorFailed: the external dependency-extraction
	// subprocess produced unparseable output. Fatal.
	ErrDependencyExtractorFailed = errors.New("dependency extractor produced unparseable output")

	// ErrParseFailure: an individual source file failed to parse.
	// Recovered locally by callers — the file contributes nothing.
	ErrParseFailure = errors.New("source file failed to parse")

	// ErrImportUnresolved: no candidate path was found for an import.
	// Recovered locally — no body expansion for that import.
	ErrImportUnresolved = errors.New("import could not be resolved to a file")

	// ErrTargetListEmpty: the orchestrator provided no targets. Fatal at
	// the CLI layer, not inside the Builder.
	ErrTargetListEmpty = errors.New("no target names were provided")

	// ErrSchemaValidationFailure: SBOM document failed schema validation.
	// Not an error of the core resolver.
	ErrSchemaValidationFailure = errors.New("sbom document failed schema validation")
)
