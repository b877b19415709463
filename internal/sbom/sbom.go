// Package sbom is the SBOM Narrower collaborator: given a parsed SBOM
// document and a per-vulnerability reachability verdict from the
// Call-Graph Builder, it rewrites the document's ratings/scores to
// reflect proven-unreachable vulnerabilities (spec.md §6, grounded on
// narrower.py's Narrower).
package sbom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/duo-labs/narrow/internal/cvss"
	"github.com/duo-labs/narrow/internal/narrorerr"
)

// Format names the two document shapes this package narrows.
type Format string

const (
	FormatCycloneDX Format = "cyclonedx"
	FormatKrefst    Format = "krefst"
)

// Rating is one CycloneDX vulnerability rating entry.
type Rating struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Severity string  `json:"severity,omitempty"`
	Method   string  `json:"method,omitempty"`
	Vector   string  `json:"vector,omitempty"`
}

// Analysis is a CycloneDX vulnerability analysis object.
type Analysis struct {
	State         string `json:"state,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// Vulnerability covers both document flavors: the standard CycloneDX
// shape (ID, Ratings, Analysis) and the simplified vendor "krefst" shape
// (CVE, CVSSScore) nested under a component.
type Vulnerability struct {
	ID        string    `json:"id,omitempty"`
	Ratings   []Rating  `json:"ratings,omitempty"`
	Analysis  *Analysis `json:"analysis,omitempty"`
	CVE       string    `json:"cve,omitempty"`
	CVSSScore float64   `json:"cvssScore,omitempty"`
}

// Component is a CycloneDX/krefst component entry.
type Component struct {
	Type            string          `json:"type,omitempty"`
	Name            string          `json:"name,omitempty"`
	Version         string          `json:"version,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
}

// Document is the union shape this package reads and rewrites.
type Document struct {
	BOMFormat       string          `json:"bomFormat,omitempty"`
	SpecVersion     string          `json:"specVersion,omitempty"`
	SerialNumber    string          `json:"serialNumber,omitempty"`
	Version         int             `json:"version,omitempty"`
	Components      []Component     `json:"components,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
}

// Narrowed is the result of narrowing a document.
type Narrowed struct {
	Format Format
	Output []byte
	Doc    Document
}

// ValidateAndDetectFormat validates raw against both recognized schemas
// and reports which one matched, mirroring
// validate_input_data_and_is_krefst. Neither matching is a
// narrorerr.ErrSchemaValidationFailure.
func ValidateAndDetectFormat(raw []byte) (Format, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return "", fmt.Errorf("%w: %v", narrorerr.ErrSchemaValidationFailure, err)
	}
	if err := validateAgainst(cyclonedxSchema, "cyclonedx-1.4-subset.json", instance); err == nil {
		return FormatCycloneDX, nil
	}
	if err := validateAgainst(krefstSchema, "krefst.json", instance); err == nil {
		return FormatKrefst, nil
	}
	return "", fmt.Errorf("%w: document matches neither the CycloneDX nor the krefst schema", narrorerr.ErrSchemaValidationFailure)
}

func validateAgainst(schemaJSON, url string, instance any) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return err
	}
	return schema.Validate(instance)
}

// Narrow validates raw, dispatches to the matching format's narrowing
// logic, and returns the rewritten document. detected maps a
// vulnerability id (CVE or CycloneDX id) to whether the Call-Graph
// Builder proved its patched function reachable; an id absent from the
// map was never evaluated (e.g. the Patch-Target Miner found no targets
// for it) and is left untouched, same as a proven-reachable id — only an
// id explicitly evaluated and found unreachable gets downgraded.
func Narrow(raw []byte, detected map[string]bool) (Narrowed, error) {
	format, err := ValidateAndDetectFormat(raw)
	if err != nil {
		return Narrowed{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Narrowed{}, fmt.Errorf("%w: %v", narrorerr.ErrSchemaValidationFailure, err)
	}

	switch format {
	case FormatCycloneDX:
		narrowCycloneDX(&doc, detected)
	case FormatKrefst:
		narrowKrefst(&doc, detected)
	}

	out, err := marshalIndent(doc)
	if err != nil {
		return Narrowed{}, err
	}
	return Narrowed{Format: format, Output: out, Doc: doc}, nil
}

// narrowCycloneDX implements generate_output_standard: for every
// vulnerability present in detected with a false verdict (evaluated and
// found unreachable), set analysis.state=not_affected,
// analysis.justification=code_not_reachable, and append a new rating
// whose vector has exploit-code-maturity=unproven and
// report-confidence=unknown.
func narrowCycloneDX(doc *Document, detected map[string]bool) {
	if doc.SerialNumber == "" {
		doc.SerialNumber = "urn:uuid:" + uuid.New().String()
	}
	runDate := time.Now().UTC().Format("2006-01-02")
	for i := range doc.Vulnerabilities {
		v := &doc.Vulnerabilities[i]
		reached, evaluated := detected[v.ID]
		if !evaluated || reached {
			continue // never mined a target, or proven reachable: leave severity as reported
		}
		v.Analysis = &Analysis{State: "not_affected", Justification: "code_not_reachable"}
		if len(v.Ratings) == 0 {
			continue
		}
		reduced := Rating{Vector: cvss.DropSeverity(v.Ratings[0].Vector)}
		reduced.Source.Name = "narrow run on " + runDate
		v.Ratings = append(v.Ratings, reduced)
	}
}

// narrowKrefst implements generate_output_krefst: for every vulnerability
// present in detected with a false verdict, reduce the numeric CVSS score
// by 2.5, floored at 0. CVEs absent from detected are left untouched.
func narrowKrefst(doc *Document, detected map[string]bool) {
	for c := range doc.Components {
		for i := range doc.Components[c].Vulnerabilities {
			v := &doc.Components[c].Vulnerabilities[i]
			reached, evaluated := detected[v.CVE]
			if !evaluated || reached {
				continue
			}
			v.CVSSScore = cvss.ReduceScore(v.CVSSScore)
		}
	}
}

func marshalIndent(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
