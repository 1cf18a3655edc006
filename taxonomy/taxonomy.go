/*
Package taxonomy defines the canonical cost-line vocabulary.

PURPOSE:
  Every cost line in the system is identified by one canonical code
  ("rubro"). Estimates arrive with already-canonical codes, legacy
  aliases, or free text; this package maps all of them to the canonical
  vocabulary and rejects anything it cannot map. The hard invariant
  enforced downstream: no non-canonical code ever reaches storage.

KEY CONCEPTS IN THIS FILE:
  - Code:    A canonical cost-line identifier (e.g. "MOD-LEAD")
  - Entry:   Reference data for one code (category, description)
  - Resolve: token -> Code, or a TaxonomyViolationError

MATCHING RULES:
  Case-insensitive; '-', '_' and runs of spaces are collapsed to a single
  '-' before lookup, so "mod lead", "MOD_LEAD" and "Mod-Lead" all resolve
  to MOD-LEAD. After normalization the token is looked up first in the
  canonical table, then in the alias table. Resolve is pure and
  idempotent: Resolve(Resolve(x)) == Resolve(x).

REFERENCE DATA:
  The table is compiled in and treated as process-wide immutable state.
  Accessors return copies; nothing here mutates after init.

SEE ALSO:
  - rubro/materializer.go: Refuses estimates whose code does not resolve
  - payroll/ledger.go:     Validates rubro references on ingestion
*/
package taxonomy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is a canonical cost-line identifier.
type Code string

// Entry is the read-only reference data for one canonical code.
type Entry struct {
	Code         Code
	Category     string
	CategoryCode string
	Description  string
}

// =============================================================================
// CANONICAL TABLE
// =============================================================================

// Labor codes use the MOD ("mano de obra directa") prefix carried over
// from the legacy system; everything else is non-labor.
const (
	CodeModLead  Code = "MOD-LEAD"
	CodeModSr    Code = "MOD-SR"
	CodeModSSr   Code = "MOD-SSR"
	CodeModJr    Code = "MOD-JR"
	CodeModPM    Code = "MOD-PM"
	CodeModQA    Code = "MOD-QA"
	CodeInfra    Code = "INFRA-CLOUD"
	CodeLicenses Code = "LIC-SW"
	CodeTravel   Code = "TRAVEL"
	CodeSubcon   Code = "SUBCON"
	CodeHardware Code = "CAPEX-HW"
	CodeTraining Code = "TRAINING"
	CodeConting  Code = "CONTINGENCY"
)

var table = map[Code]Entry{
	CodeModLead:  {Code: CodeModLead, Category: "labor", CategoryCode: "MOD", Description: "Technical lead"},
	CodeModSr:    {Code: CodeModSr, Category: "labor", CategoryCode: "MOD", Description: "Senior engineer"},
	CodeModSSr:   {Code: CodeModSSr, Category: "labor", CategoryCode: "MOD", Description: "Semi-senior engineer"},
	CodeModJr:    {Code: CodeModJr, Category: "labor", CategoryCode: "MOD", Description: "Junior engineer"},
	CodeModPM:    {Code: CodeModPM, Category: "labor", CategoryCode: "MOD", Description: "Project manager"},
	CodeModQA:    {Code: CodeModQA, Category: "labor", CategoryCode: "MOD", Description: "Quality engineer"},
	CodeInfra:    {Code: CodeInfra, Category: "infrastructure", CategoryCode: "MOI", Description: "Cloud infrastructure"},
	CodeLicenses: {Code: CodeLicenses, Category: "software", CategoryCode: "MOI", Description: "Software licenses"},
	CodeTravel:   {Code: CodeTravel, Category: "expenses", CategoryCode: "MOI", Description: "Travel and per diem"},
	CodeSubcon:   {Code: CodeSubcon, Category: "subcontracting", CategoryCode: "MOI", Description: "Subcontracted services"},
	CodeHardware: {Code: CodeHardware, Category: "capex", CategoryCode: "MOI", Description: "Hardware purchases"},
	CodeTraining: {Code: CodeTraining, Category: "expenses", CategoryCode: "MOI", Description: "Training and certifications"},
	CodeConting:  {Code: CodeConting, Category: "reserve", CategoryCode: "MOI", Description: "Contingency reserve"},
}

// aliases maps normalized legacy tokens to canonical codes. Keys must
// already be in normalized form (see Normalize).
var aliases = map[string]Code{
	"LEAD":            CodeModLead,
	"TECH-LEAD":       CodeModLead,
	"LIDER-TECNICO":   CodeModLead,
	"SENIOR":          CodeModSr,
	"INGENIERO-SR":    CodeModSr,
	"SEMI-SENIOR":     CodeModSSr,
	"JUNIOR":          CodeModJr,
	"INGENIERO-JR":    CodeModJr,
	"PM":              CodeModPM,
	"PROJECT-MANAGER": CodeModPM,
	"QA":              CodeModQA,
	"TESTER":          CodeModQA,
	"CLOUD":           CodeInfra,
	"AWS":             CodeInfra,
	"INFRAESTRUCTURA": CodeInfra,
	"LICENCIAS":       CodeLicenses,
	"LICENSES":        CodeLicenses,
	"SOFTWARE":        CodeLicenses,
	"VIAJES":          CodeTravel,
	"VIATICOS":        CodeTravel,
	"SUBCONTRATO":     CodeSubcon,
	"TERCEROS":        CodeSubcon,
	"HW":              CodeHardware,
	"EQUIPOS":         CodeHardware,
	"CAPACITACION":    CodeTraining,
	"RESERVA":         CodeConting,
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrTaxonomyViolation is the sentinel for unresolvable cost-line codes.
var ErrTaxonomyViolation = errors.New("taxonomy violation")

// ViolationError names the token that failed to resolve.
type ViolationError struct {
	Token string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("taxonomy violation: unknown cost-line code %q", e.Token)
}

func (e *ViolationError) Unwrap() error { return ErrTaxonomyViolation }

// =============================================================================
// RESOLUTION
// =============================================================================

// Normalize folds case and separators: upper-cases, then collapses '_',
// '-' and runs of whitespace into single '-' separators.
func Normalize(token string) string {
	fields := strings.FieldsFunc(strings.ToUpper(strings.TrimSpace(token)), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t'
	})
	return strings.Join(fields, "-")
}

// Resolve maps a token to its canonical code. The token may be a
// canonical code, a known alias, or free text that normalizes to one of
// those. Unknown tokens return a *ViolationError.
func Resolve(token string) (Code, error) {
	norm := Normalize(token)
	if norm == "" {
		return "", &ViolationError{Token: token}
	}
	if _, ok := table[Code(norm)]; ok {
		return Code(norm), nil
	}
	if code, ok := aliases[norm]; ok {
		return code, nil
	}
	return "", &ViolationError{Token: token}
}

// Lookup returns the reference entry for a canonical code.
func Lookup(code Code) (Entry, bool) {
	e, ok := table[code]
	return e, ok
}

// IsCanonical reports whether code is a member of the canonical
// vocabulary as-is, with no normalization applied.
func IsCanonical(code Code) bool {
	_, ok := table[code]
	return ok
}

// Codes returns the canonical vocabulary sorted by code.
func Codes() []Entry {
	out := make([]Entry, 0, len(table))
	for _, e := range table {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
