package sbom

// cyclonedxSchema is a reduced subset of the CycloneDX 1.4 JSON Schema —
// enough to validate the fields this package reads and rewrites
// (bomFormat, specVersion, components, top-level vulnerabilities with
// ratings/analysis). narrower.py embeds the full upstream schema
// (STANDARD_SCA_SCHEMA); carrying the complete ~1900-line schema verbatim
// would not be read by anything this package touches, so only the
// exercised subset is kept.
const cyclonedxSchema = `{
  "$id": "https://narrow.internal/schema/cyclonedx-1.4-subset.json",
  "type": "object",
  "required": ["bomFormat", "specVersion"],
  "properties": {
    "bomFormat": {"type": "string", "const": "CycloneDX"},
    "specVersion": {"type": "string"},
    "serialNumber": {"type": "string"},
    "version": {"type": "integer"},
    "components": {"type": "array"},
    "vulnerabilities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string"},
          "ratings": {"type": "array"},
          "analysis": {"type": "object"}
        }
      }
    }
  }
}`

// krefstSchema validates the simplified vendor format: a flat list of
// components whose vulnerabilities carry a bare cve id and numeric score.
const krefstSchema = `{
  "$id": "https://narrow.internal/schema/krefst.json",
  "type": "object",
  "required": ["components"],
  "properties": {
    "components": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "vulnerabilities": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["cve"],
              "properties": {
                "cve": {"type": "string"},
                "cvssScore": {"type": "number"}
              }
            }
          }
        }
      }
    }
  }
}`
