package requirements

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"gcx-supplier-go/models"
)

func catalog() []models.DocumentRequirement {
	return []models.DocumentRequirement{
		{ID: 1, Code: "BUSINESS_REGISTRATION_DOCS", Label: "Business Registration", IsRequired: true, IsActive: true, SortOrder: 10},
		{ID: 2, Code: "VAT_CERTIFICATE", Label: "VAT Certificate", IsRequired: true, IsActive: true, SortOrder: 20},
		{ID: 3, Code: "TAX_CLEARANCE_CERT", Label: "Tax Clearance", IsRequired: true, IsActive: true, SortOrder: 30},
		{ID: 4, Code: "FDA_CERT_PROCESSED_FOOD", Label: "FDA Certificate", Condition: models.ConditionProcessedFood, IsActive: true, SortOrder: 40},
		{ID: 5, Code: "TRADE_LICENCE", Label: "Trade Licence", IsActive: true, SortOrder: 50},
		{ID: 6, Code: "LEGACY_FORM", Label: "Legacy Form", IsRequired: true, IsActive: false, SortOrder: 60},
	}
}

var verified = Policy{RequireVerifiedUploads: true}

func upload(id, reqID uint, verified bool) models.DocumentUpload {
	return models.DocumentUpload{
		ID:            id,
		RequirementID: reqID,
		Current:       true,
		Verified:      verified,
		UploadedAt:    time.Date(2025, 1, 1, 0, 0, int(id), 0, time.UTC),
	}
}

func TestResolveNoUploads(t *testing.T) {
	res := Resolve(Input{Catalog: catalog()}, verified)

	want := []string{"BUSINESS_REGISTRATION_DOCS", "VAT_CERTIFICATE", "TAX_CLEARANCE_CERT"}
	if !reflect.DeepEqual(res.Required, want) {
		t.Errorf("Required = %v, want %v", res.Required, want)
	}
	if !reflect.DeepEqual(res.Outstanding, res.Required) {
		t.Errorf("Outstanding = %v, want %v", res.Outstanding, res.Required)
	}
	if len(res.Satisfied) != 0 {
		t.Errorf("Satisfied = %v, want empty", res.Satisfied)
	}
	if res.Complete() {
		t.Error("Complete() = true with nothing uploaded")
	}
}

func TestResolveProcessedFood(t *testing.T) {
	tomBrown := models.Commodity{ID: 3, Name: "Tom Brown", IsProcessedFood: true}
	rice := models.Commodity{ID: 1, Name: "Rice"}

	tests := []struct {
		name  string
		in    Input
		wants bool
	}{
		{"processed commodity", Input{Commodities: []models.Commodity{rice, tomBrown}}, true},
		{"unprocessed only", Input{Commodities: []models.Commodity{rice}}, false},
		{"free text palm oil", Input{Commodities: []models.Commodity{rice}, OtherCommodities: "Red Palm Oil, shea"}, true},
		{"no commodities", Input{}, false},
		{"broken reference", Input{Commodities: []models.Commodity{{Name: "ghost", IsProcessedFood: true}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Catalog = catalog()
			res := Resolve(tt.in, verified)
			got := contains(res.Required, "FDA_CERT_PROCESSED_FOOD")
			if got != tt.wants {
				t.Errorf("FDA certificate required = %v, want %v (required %v)", got, tt.wants, res.Required)
			}
		})
	}
}

func TestResolveBrokenCommodityWarns(t *testing.T) {
	res := Resolve(Input{
		Catalog:     catalog(),
		Commodities: []models.Commodity{{Name: "ghost", IsProcessedFood: true}},
	}, verified)
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning for a commodity without id")
	}
}

func TestResolveVerificationGating(t *testing.T) {
	in := Input{
		Catalog: catalog(),
		Uploads: []models.DocumentUpload{upload(10, 1, true), upload(11, 2, false)},
	}

	gated := Resolve(in, Policy{RequireVerifiedUploads: true})
	if !reflect.DeepEqual(gated.Satisfied, []string{"BUSINESS_REGISTRATION_DOCS"}) {
		t.Errorf("gated Satisfied = %v", gated.Satisfied)
	}
	if !reflect.DeepEqual(gated.Outstanding, []string{"VAT_CERTIFICATE", "TAX_CLEARANCE_CERT"}) {
		t.Errorf("gated Outstanding = %v", gated.Outstanding)
	}

	open := Resolve(in, Policy{RequireVerifiedUploads: false})
	if !reflect.DeepEqual(open.Satisfied, []string{"BUSINESS_REGISTRATION_DOCS", "VAT_CERTIFICATE"}) {
		t.Errorf("ungated Satisfied = %v", open.Satisfied)
	}
}

func TestResolveRejectedAndSupersededUploads(t *testing.T) {
	rejected := upload(10, 1, false)
	rejected.Rejected = true
	old := upload(11, 2, true)
	old.Current = false

	res := Resolve(Input{
		Catalog: catalog(),
		Uploads: []models.DocumentUpload{rejected, old},
	}, Policy{RequireVerifiedUploads: false})

	if len(res.Satisfied) != 0 {
		t.Errorf("Satisfied = %v, rejected and superseded uploads must not count", res.Satisfied)
	}
	row := findRow(res, "BUSINESS_REGISTRATION_DOCS")
	if row == nil || row.State() != "Rejected" {
		t.Errorf("row = %+v, want Rejected", row)
	}
}

func TestResolveOutstandingRequests(t *testing.T) {
	licence := models.DocumentRequirement{ID: 5, Code: "TRADE_LICENCE"}
	custom := models.DocumentRequirement{ID: 99, Code: "BOARD_RESOLUTION", Label: "Board Resolution"}

	in := Input{
		Catalog: catalog(),
		Requests: []models.OutstandingDocumentRequest{
			{ID: 1, Requirements: []models.DocumentRequirement{licence}},
			{ID: 2, Requirements: []models.DocumentRequirement{custom}, Description: "Signed board resolution"},
			{ID: 3, Requirements: []models.DocumentRequirement{{ID: 2, Code: "VAT_CERTIFICATE"}}, Fulfilled: true},
			{ID: 4, Description: "Clarify warehouse capacity"},
		},
	}
	res := Resolve(in, verified)

	want := []string{"BUSINESS_REGISTRATION_DOCS", "VAT_CERTIFICATE", "TAX_CLEARANCE_CERT", "TRADE_LICENCE", "BOARD_RESOLUTION"}
	if !reflect.DeepEqual(res.Required, want) {
		t.Errorf("Required = %v, want %v", res.Required, want)
	}
	if !reflect.DeepEqual(res.OpenRequests, []uint{1, 2, 4}) {
		t.Errorf("OpenRequests = %v", res.OpenRequests)
	}
	if !reflect.DeepEqual(res.AdhocRequests, []string{"Signed board resolution", "Clarify warehouse capacity"}) {
		t.Errorf("AdhocRequests = %v", res.AdhocRequests)
	}
	if !hasWarning(res, "BOARD_RESOLUTION") {
		t.Errorf("expected warning about requirement outside catalog, got %v", res.Warnings)
	}
}

func TestResolveInactiveRequirementNamedByRequest(t *testing.T) {
	in := Input{
		Catalog:  catalog(),
		Requests: []models.OutstandingDocumentRequest{{ID: 1, Requirements: []models.DocumentRequirement{{ID: 6, Code: "LEGACY_FORM"}}}},
	}
	res := Resolve(in, verified)
	if !contains(res.Required, "LEGACY_FORM") {
		t.Errorf("inactive requirement named by a request should be required: %v", res.Required)
	}
	if contains(Resolve(Input{Catalog: catalog()}, verified).Required, "LEGACY_FORM") {
		t.Error("inactive requirement should not be required by default")
	}
}

func TestResolveUnknownCondition(t *testing.T) {
	cat := append(catalog(), models.DocumentRequirement{ID: 7, Code: "EXPORT_PERMIT", Condition: "exporter", IsActive: true, SortOrder: 70})
	res := Resolve(Input{Catalog: cat}, verified)
	if contains(res.Required, "EXPORT_PERMIT") {
		t.Error("unknown condition should resolve to not required")
	}
	if !hasWarning(res, "EXPORT_PERMIT") {
		t.Errorf("expected warning, got %v", res.Warnings)
	}
}

func TestResolveDuplicateCurrentUploads(t *testing.T) {
	older := upload(10, 1, false)
	newer := upload(11, 1, true)
	res := Resolve(Input{Catalog: catalog(), Uploads: []models.DocumentUpload{newer, older}}, verified)
	if !contains(res.Satisfied, "BUSINESS_REGISTRATION_DOCS") {
		t.Errorf("latest upload should win: %v", res.Satisfied)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected warning about duplicate current uploads")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	cat := catalog()
	// Shuffled catalog resolves to the same order.
	shuffled := []models.DocumentRequirement{cat[3], cat[0], cat[5], cat[2], cat[1], cat[4]}
	in := Input{
		Catalog:     shuffled,
		Commodities: []models.Commodity{{ID: 4, Name: "Palm Oil", IsProcessedFood: true}},
		Uploads:     []models.DocumentUpload{upload(10, 3, true), upload(11, 4, false)},
	}
	first := Resolve(in, verified)
	second := Resolve(in, verified)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Resolve not deterministic:\n%+v\n%+v", first, second)
	}
	inOrder := Resolve(Input{Catalog: cat, Commodities: in.Commodities, Uploads: in.Uploads}, verified)
	if !reflect.DeepEqual(first.Required, inOrder.Required) {
		t.Errorf("order depends on input order: %v vs %v", first.Required, inOrder.Required)
	}
	if shuffled[0].Code != "FDA_CERT_PROCESSED_FOOD" {
		t.Error("Resolve mutated the input catalog")
	}
}

func TestFulfilled(t *testing.T) {
	res := Result{Satisfied: []string{"VAT_CERTIFICATE", "TAX_CLEARANCE_CERT"}}
	tests := []struct {
		name string
		req  models.OutstandingDocumentRequest
		want bool
	}{
		{"all satisfied", models.OutstandingDocumentRequest{Requirements: []models.DocumentRequirement{{Code: "VAT_CERTIFICATE"}, {Code: "TAX_CLEARANCE_CERT"}}}, true},
		{"one missing", models.OutstandingDocumentRequest{Requirements: []models.DocumentRequirement{{Code: "VAT_CERTIFICATE"}, {Code: "PPA_CERTIFICATE"}}}, false},
		{"free text only", models.OutstandingDocumentRequest{Description: "call us"}, false},
	}
	for _, tt := range tests {
		if got := Fulfilled(tt.req, res); got != tt.want {
			t.Errorf("%s: Fulfilled = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDocumentRows(t *testing.T) {
	res := Resolve(Input{Catalog: catalog(), Uploads: []models.DocumentUpload{upload(10, 2, false)}}, verified)

	states := map[string]string{}
	for _, d := range res.Documents {
		states[d.Code] = d.State()
	}
	want := map[string]string{
		"BUSINESS_REGISTRATION_DOCS": "Missing",
		"VAT_CERTIFICATE":            "Pending verification",
		"TAX_CLEARANCE_CERT":         "Missing",
		"FDA_CERT_PROCESSED_FOOD":    "Not required",
		"TRADE_LICENCE":              "Not required",
	}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func hasWarning(res Result, substr string) bool {
	for _, w := range res.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func findRow(res Result, code string) *DocumentStatus {
	for i := range res.Documents {
		if res.Documents[i].Code == code {
			return &res.Documents[i]
		}
	}
	return nil
}
