// Package requirements decides which documents an application needs and
// which of them are already satisfied. Everything here is pure: no I/O,
// no clock, no globals, so it is safe to call repeatedly and concurrently.
package requirements

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gcx-supplier-go/models"
)

// Policy carries the knobs that change how uploads count.
type Policy struct {
	// RequireVerifiedUploads makes only staff-verified uploads satisfy a
	// requirement. When false any current, non-rejected upload does.
	RequireVerifiedUploads bool
}

// Input is the state the resolver works from. Catalog is re-sorted by
// SortOrder then ID, so callers need not pre-sort it.
type Input struct {
	Catalog          []models.DocumentRequirement
	Commodities      []models.Commodity
	OtherCommodities string
	Uploads          []models.DocumentUpload
	Requests         []models.OutstandingDocumentRequest
}

// InputFrom builds resolver input from a loaded aggregate.
func InputFrom(agg *models.ApplicationAggregate) Input {
	return Input{
		Catalog:          agg.Catalog,
		Commodities:      agg.Application.Commodities,
		OtherCommodities: agg.Application.OtherCommodities,
		Uploads:          agg.Uploads,
		Requests:         agg.Requests,
	}
}

// DocumentStatus is one row of the document completeness table.
type DocumentStatus struct {
	Code       string     `json:"code"`
	Label      string     `json:"label"`
	Required   bool       `json:"required"`
	Uploaded   bool       `json:"uploaded"`
	Verified   bool       `json:"verified"`
	Rejected   bool       `json:"rejected"`
	Satisfied  bool       `json:"satisfied"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// State is a short human readable description of the row.
func (d DocumentStatus) State() string {
	switch {
	case d.Rejected:
		return "Rejected"
	case d.Verified:
		return "Verified"
	case d.Uploaded:
		return "Pending verification"
	case d.Required:
		return "Missing"
	}
	return "Not required"
}

type Result struct {
	Required    []string         `json:"required"`
	Satisfied   []string         `json:"satisfied"`
	Outstanding []string         `json:"outstanding"`
	Documents   []DocumentStatus `json:"documents"`

	// OpenRequests are ids of unfulfilled document requests.
	OpenRequests []uint `json:"open_requests"`
	// AdhocRequests are free-text asks from open requests. They are shown
	// to reviewers but never block approval.
	AdhocRequests []string `json:"adhoc_requests"`

	// Warnings describe inconsistent input the caller should log.
	Warnings []string `json:"warnings,omitempty"`
}

// Complete reports whether nothing required is outstanding.
func (r Result) Complete() bool {
	return len(r.Outstanding) == 0
}

func (r Result) IsSatisfied(code string) bool {
	for _, c := range r.Satisfied {
		if c == code {
			return true
		}
	}
	return false
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Applicants list products outside the commodity table as free text.
var processedFoodKeywords = []string{"tom brown", "palm oil"}

func Resolve(in Input, policy Policy) Result {
	res := Result{
		Required:      []string{},
		Satisfied:     []string{},
		Outstanding:   []string{},
		Documents:     []DocumentStatus{},
		OpenRequests:  []uint{},
		AdhocRequests: []string{},
	}

	catalog := sortedCatalog(in.Catalog)
	known := make(map[uint]bool, len(catalog))
	for _, req := range catalog {
		known[req.ID] = true
	}

	processed := processedFood(in, &res)

	required := make(map[uint]bool)
	for _, req := range catalog {
		if !req.IsActive {
			continue
		}
		if req.Condition == "" {
			if req.IsRequired {
				required[req.ID] = true
			}
			continue
		}
		matched, ok := evalCondition(req.Condition, processed)
		if !ok {
			res.warnf("requirement %s has unknown condition %q, treated as not required", req.Code, req.Condition)
			continue
		}
		if req.IsRequired {
			res.warnf("requirement %s is marked required and conditional on %q, the condition decides", req.Code, req.Condition)
		}
		if matched {
			required[req.ID] = true
		}
	}

	// Requirements named by open requests but missing from the catalog
	// are appended after it, in request order.
	var extra []models.DocumentRequirement
	for _, r := range in.Requests {
		if r.Fulfilled {
			continue
		}
		res.OpenRequests = append(res.OpenRequests, r.ID)
		if desc := strings.TrimSpace(r.Description); desc != "" {
			res.AdhocRequests = append(res.AdhocRequests, desc)
		}
		for _, named := range r.Requirements {
			if named.ID == 0 {
				res.warnf("document request %d names a requirement without an id, ignored", r.ID)
				continue
			}
			if !known[named.ID] {
				res.warnf("document request %d names requirement %s outside the catalog", r.ID, named.Code)
				known[named.ID] = true
				extra = append(extra, named)
			}
			required[named.ID] = true
		}
	}

	current := currentUploads(in.Uploads, &res)

	for _, req := range append(catalog, extra...) {
		up, uploaded := current[req.ID]
		isRequired := required[req.ID]
		satisfied := uploaded && satisfies(up, policy)

		if isRequired {
			res.Required = append(res.Required, req.Code)
			if satisfied {
				res.Satisfied = append(res.Satisfied, req.Code)
			} else {
				res.Outstanding = append(res.Outstanding, req.Code)
			}
		}

		if !req.IsActive && !isRequired && !uploaded {
			continue
		}
		row := DocumentStatus{
			Code:      req.Code,
			Label:     req.Label,
			Required:  isRequired,
			Uploaded:  uploaded,
			Satisfied: satisfied,
		}
		if uploaded {
			at := up.UploadedAt
			row.UploadedAt = &at
			row.Verified = up.Verified
			row.Rejected = up.Rejected
		}
		res.Documents = append(res.Documents, row)
	}

	var orphans []uint
	for id := range current {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	for _, id := range orphans {
		res.warnf("upload %d references unknown requirement %d, ignored", current[id].ID, id)
	}

	return res
}

// Fulfilled reports whether every requirement a request names is now
// satisfied. Requests carrying only free text are never auto-fulfilled.
func Fulfilled(req models.OutstandingDocumentRequest, res Result) bool {
	if len(req.Requirements) == 0 {
		return false
	}
	for _, named := range req.Requirements {
		if !res.IsSatisfied(named.Code) {
			return false
		}
	}
	return true
}

func satisfies(up models.DocumentUpload, policy Policy) bool {
	if up.Rejected {
		return false
	}
	return up.Verified || !policy.RequireVerifiedUploads
}

func sortedCatalog(catalog []models.DocumentRequirement) []models.DocumentRequirement {
	out := make([]models.DocumentRequirement, len(catalog))
	copy(out, catalog)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// processedFood treats broken commodity references as non-matching.
func processedFood(in Input, res *Result) bool {
	matched := false
	for _, c := range in.Commodities {
		if c.ID == 0 {
			res.warnf("selected commodity %q has no id, ignored for conditional requirements", c.Name)
			continue
		}
		if c.IsProcessedFood {
			matched = true
		}
	}
	other := strings.ToLower(in.OtherCommodities)
	for _, kw := range processedFoodKeywords {
		if strings.Contains(other, kw) {
			matched = true
		}
	}
	return matched
}

func evalCondition(condition string, processed bool) (matched, ok bool) {
	switch strings.ToLower(strings.TrimSpace(condition)) {
	case models.ConditionProcessedFood:
		return processed, true
	}
	return false, false
}

// currentUploads keeps the latest current upload per requirement.
func currentUploads(uploads []models.DocumentUpload, res *Result) map[uint]models.DocumentUpload {
	current := make(map[uint]models.DocumentUpload)
	for _, up := range uploads {
		if !up.Current {
			continue
		}
		prev, seen := current[up.RequirementID]
		if seen {
			res.warnf("requirement %d has more than one current upload, using the latest", up.RequirementID)
			if up.UploadedAt.Before(prev.UploadedAt) || (up.UploadedAt.Equal(prev.UploadedAt) && up.ID < prev.ID) {
				continue
			}
		}
		current[up.RequirementID] = up
	}
	return current
}
