package sbom

import (
	"encoding/json"
	"strings"
	"testing"
)

const cyclonedxFixture = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.4",
  "vulnerabilities": [
    {
      "id": "CVE-2024-0001",
      "ratings": [
        {"source": {"name": "nvd"}, "score": 9.8, "vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}
      ]
    },
    {
      "id": "CVE-2024-0002",
      "ratings": [
        {"source": {"name": "nvd"}, "score": 7.5, "vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N"}
      ]
    }
  ]
}`

const krefstFixture = `{
  "components": [
    {
      "name": "widget",
      "vulnerabilities": [
        {"cve": "CVE-2024-0001", "cvssScore": 9.8},
        {"cve": "CVE-2024-0002", "cvssScore": 7.5}
      ]
    }
  ]
}`

func TestValidateAndDetectFormat(t *testing.T) {
	format, err := ValidateAndDetectFormat([]byte(cyclonedxFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatCycloneDX {
		t.Fatalf("expected %s, got %s", FormatCycloneDX, format)
	}

	format, err = ValidateAndDetectFormat([]byte(krefstFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatKrefst {
		t.Fatalf("expected %s, got %s", FormatKrefst, format)
	}

	if _, err := ValidateAndDetectFormat([]byte(`{"nonsense": true}`)); err == nil {
		t.Fatal("expected an error for a document matching neither schema")
	}
}

func TestNarrow_CycloneDX_UnreachableGetsAnalysisAndRating(t *testing.T) {
	// 0001 proven reachable, 0002 evaluated and proven unreachable.
	detected := map[string]bool{"CVE-2024-0001": true, "CVE-2024-0002": false}

	result, err := Narrow([]byte(cyclonedxFixture), detected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Format != FormatCycloneDX {
		t.Fatalf("expected cyclonedx, got %s", result.Format)
	}
	if result.Doc.SerialNumber == "" {
		t.Fatal("expected a serial number to be stamped")
	}

	byID := map[string]Vulnerability{}
	for _, v := range result.Doc.Vulnerabilities {
		byID[v.ID] = v
	}

	reachable := byID["CVE-2024-0001"]
	if reachable.Analysis != nil {
		t.Fatalf("reachable vulnerability should not gain an analysis object, got %+v", reachable.Analysis)
	}
	if len(reachable.Ratings) != 1 {
		t.Fatalf("reachable vulnerability should keep exactly its original rating, got %d", len(reachable.Ratings))
	}

	unreachable := byID["CVE-2024-0002"]
	if unreachable.Analysis == nil || unreachable.Analysis.State != "not_affected" || unreachable.Analysis.Justification != "code_not_reachable" {
		t.Fatalf("expected not_affected/code_not_reachable analysis, got %+v", unreachable.Analysis)
	}
	if len(unreachable.Ratings) != 2 {
		t.Fatalf("expected an additional rating appended, got %d ratings", len(unreachable.Ratings))
	}
	added := unreachable.Ratings[1]
	if !strings.Contains(added.Vector, "E:U") || !strings.Contains(added.Vector, "RC:U") {
		t.Fatalf("expected added rating vector to carry E:U/RC:U, got %s", added.Vector)
	}
	if !strings.HasPrefix(added.Source.Name, "narrow run on ") {
		t.Fatalf("expected added rating source name to be stamped, got %s", added.Source.Name)
	}

	var roundTrip Document
	if err := json.Unmarshal(result.Output, &roundTrip); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}

func TestNarrow_Krefst_UnreachableScoreReduced(t *testing.T) {
	detected := map[string]bool{"CVE-2024-0001": true, "CVE-2024-0002": false}

	result, err := Narrow([]byte(krefstFixture), detected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Format != FormatKrefst {
		t.Fatalf("expected krefst, got %s", result.Format)
	}

	byCVE := map[string]Vulnerability{}
	for _, v := range result.Doc.Components[0].Vulnerabilities {
		byCVE[v.CVE] = v
	}

	if got := byCVE["CVE-2024-0001"].CVSSScore; got != 9.8 {
		t.Fatalf("reachable score should be untouched, got %v", got)
	}
	if got := byCVE["CVE-2024-0002"].CVSSScore; got != 5.0 {
		t.Fatalf("expected 7.5-2.5=5.0, got %v", got)
	}
}

func TestNarrow_CycloneDX_UnevaluatedIDLeftUntouched(t *testing.T) {
	// CVE-2024-0002 is absent: no patch targets were ever mined for it, so
	// it was never evaluated, not proven unreachable.
	detected := map[string]bool{"CVE-2024-0001": true}

	result, err := Narrow([]byte(cyclonedxFixture), detected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := map[string]Vulnerability{}
	for _, v := range result.Doc.Vulnerabilities {
		byID[v.ID] = v
	}
	unevaluated := byID["CVE-2024-0002"]
	if unevaluated.Analysis != nil {
		t.Fatalf("unevaluated vulnerability should not gain an analysis object, got %+v", unevaluated.Analysis)
	}
	if len(unevaluated.Ratings) != 1 {
		t.Fatalf("unevaluated vulnerability should keep exactly its original rating, got %d", len(unevaluated.Ratings))
	}
}

func TestNarrow_Krefst_UnevaluatedIDLeftUntouched(t *testing.T) {
	detected := map[string]bool{"CVE-2024-0001": true}

	result, err := Narrow([]byte(krefstFixture), detected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byCVE := map[string]Vulnerability{}
	for _, v := range result.Doc.Components[0].Vulnerabilities {
		byCVE[v.CVE] = v
	}
	if got := byCVE["CVE-2024-0002"].CVSSScore; got != 7.5 {
		t.Fatalf("unevaluated vulnerability's score should be untouched, got %v", got)
	}
}

func TestNarrow_RejectsUnrecognizedDocument(t *testing.T) {
	if _, err := Narrow([]byte(`{"nonsense": true}`), nil); err == nil {
		t.Fatal("expected an error for an unrecognized document shape")
	}
}
