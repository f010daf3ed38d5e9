// Package report renders the verifiable PDF snapshot of an application.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"gcx-supplier-go/models"
	"gcx-supplier-go/requirements"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

const (
	margin     = 12.7
	labelWidth = 50.0
	lineHeight = 5.5
	qrSize     = 38.0

	dateLayout     = "02 January 2006"
	footerLayout   = "02 January 2006 at 03:04 PM"
	uploadedLayout = "02/01/2006"
)

var footerLines = []string{
	"Please submit completed form to:",
	"HEAD, Membership & Special Projects",
	"Ghana Commodity Exchange",
	"2nd Floor Africa Trade House | Cruickshank Road/Liberia Road | Ridge - Accra",
	"Phone: 0302 937 677 | Mobile: 0594164479/0594164473",
	"Email: membership@gcx.com.gh | Website: www.gcx.com.gh",
}

const declarationText = "We hereby declare that the details furnished above are true and correct to the best of our " +
	"knowledge and belief and we undertake to inform you of any changes therein immediately. " +
	"In case any of the above information is found to be false or untrue or misleading or " +
	"misrepresenting we are aware that we may be held liable for it.\n\n" +
	"We undertake that any misstatement or misrepresentation or suppression of facts in " +
	"connection with this application for supplier registration or breach of any undertaking or condition " +
	"of admission may entail rejection of our application or removal from the supplier registry."

var businessTypes = map[string]string{
	"sole":        "Sole Proprietorship",
	"partnership": "Partnership",
	"limited":     "Limited Liability Company",
	"corporation": "Corporation",
	"other":       "Other",
}

var idCardTypes = map[string]string{
	models.IDCardGhanaCard: "Ghana Card",
	models.IDCardPassport:  "Passport",
	models.IDCardVoterID:   "Voter ID",
	models.IDCardOther:     "Other",
}

// Report is a rendered snapshot.
type Report struct {
	Bytes           []byte    `json:"-"`
	Hash            string    `json:"hash"`
	VerificationURL string    `json:"verification_url"`
	FileName        string    `json:"file_name"`
	GeneratedAt     time.Time `json:"generated_at"`
	StorageRef      string    `json:"storage_ref,omitempty"`
}

type Generator struct {
	secret  string
	baseURL string
}

func NewGenerator(secret, publicBaseURL string) *Generator {
	return &Generator{secret: secret, baseURL: publicBaseURL}
}

// Render lays out the report. Output depends only on the aggregate, the
// resolver result and generatedAt.
func (g *Generator) Render(agg *models.ApplicationAggregate, res requirements.Result, generatedAt time.Time) (*Report, error) {
	app := &agg.Application
	if err := validate(app); err != nil {
		return nil, err
	}
	generatedAt = generatedAt.UTC().Truncate(time.Second)

	hash := DocumentHash(app.ID, app.TrackingCode, app.CreatedAt, g.secret)
	verifyURL := VerificationURL(g.baseURL, app.ID, hash)
	qr, err := qrcode.Encode(verifyURL, qrcode.High, 256)
	if err != nil {
		return nil, fmt.Errorf("encode verification code: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Application - "+app.TrackingCode, true)
	pdf.SetCreator("GCX Supplier Application Portal", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(0, 4, w.tr(fmt.Sprintf("%s - page %d", app.TrackingCode, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	w.header(app)
	w.companyDetails(app)
	w.commodities(app)
	w.nextOfKin(app.NextOfKin)
	w.teamMembers(app.TeamMembers)
	w.bankAccounts(app.BankAccounts)
	w.documents(res)
	w.declarations(app)
	w.verification(qr, hash)
	w.footer(generatedAt)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &Report{
		Bytes:           buf.Bytes(),
		Hash:            hash,
		VerificationURL: verifyURL,
		FileName:        FileName(app.TrackingCode),
		GeneratedAt:     generatedAt,
	}, nil
}

func FileName(trackingCode string) string {
	return "supplier_application_" + trackingCode + ".pdf"
}

func validate(app *models.SupplierApplication) error {
	var missing []string
	if app.ID == 0 {
		missing = append(missing, "id")
	}
	if app.TrackingCode == "" {
		missing = append(missing, "tracking_code")
	}
	if app.BusinessName == "" {
		missing = append(missing, "business_name")
	}
	if app.Email == "" {
		missing = append(missing, "email")
	}
	if app.CreatedAt.IsZero() {
		missing = append(missing, "created_at")
	}
	if !app.Status.Valid() {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return &IncompleteApplicationDataError{Fields: missing}
	}
	return nil
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) width() float64 {
	pageW, _ := w.pdf.GetPageSize()
	return pageW - 2*margin
}

func (w *writer) header(app *models.SupplierApplication) {
	p := w.pdf
	p.SetFont("Helvetica", "B", 18)
	p.CellFormat(0, 9, "SUPPLIER APPLICATION FORM", "", 1, "C", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(0, lineHeight, w.tr("Application Reference: "+app.TrackingCode), "", 1, "C", false, 0, "")
	p.CellFormat(0, lineHeight, w.tr("Status: "+app.Status.Label()), "", 1, "C", false, 0, "")
	p.CellFormat(0, lineHeight, "Date Submitted: "+app.SubmittedAt.UTC().Format(dateLayout), "", 1, "C", false, 0, "")
	p.Ln(2)
	y := p.GetY()
	p.SetLineWidth(0.6)
	p.Line(margin, y, margin+w.width(), y)
	p.SetLineWidth(0.2)
	p.Ln(5)
}

func (w *writer) section(title string) {
	p := w.pdf
	p.Ln(3)
	p.SetFont("Helvetica", "B", 10)
	p.SetFillColor(245, 245, 245)
	p.SetTextColor(0, 0, 0)
	p.CellFormat(0, 8, w.tr(title), "", 1, "L", true, 0, "")
	p.Ln(2)
}

func (w *writer) subheading(text string) {
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.CellFormat(0, lineHeight, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *writer) rows(pairs [][2]string) {
	p := w.pdf
	for _, kv := range pairs {
		p.SetFont("Helvetica", "B", 10)
		p.CellFormat(labelWidth, lineHeight, w.tr(kv[0]), "", 0, "L", false, 0, "")
		p.SetFont("Helvetica", "", 10)
		p.MultiCell(w.width()-labelWidth, lineHeight, w.tr(kv[1]), "", "L", false)
	}
}

func (w *writer) paragraph(text string) {
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
}

func (w *writer) companyDetails(app *models.SupplierApplication) {
	region := "Not Specified"
	if app.Region != nil {
		region = app.Region.Name
	}
	w.section("COMPANY DETAILS")
	w.rows([][2]string{
		{"Company Name:", app.BusinessName},
		{"Business Type:", lookup(businessTypes, app.BusinessType)},
		{"Registration Number:", orDefault(app.RegistrationNumber, "Not Provided")},
		{"TIN Number:", orDefault(app.TINNumber, "Not Provided")},
		{"Place of Business:", app.PhysicalAddress},
		{"City:", app.City},
		{"Region:", region},
		{"Country:", app.Country},
		{"Telephone:", app.Telephone},
		{"Email:", app.Email},
		{"Warehouse Location:", app.WarehouseLocation},
	})
}

func (w *writer) commodities(app *models.SupplierApplication) {
	p := w.pdf
	w.section("COMMODITIES TO SUPPLY")
	p.SetFont("Helvetica", "", 9)
	if len(app.Commodities) == 0 {
		p.CellFormat(0, lineHeight, "[ ] No commodities selected", "", 1, "L", false, 0, "")
	}
	col := w.width() / 3
	for i, c := range app.Commodities {
		ln := 0
		if i%3 == 2 || i == len(app.Commodities)-1 {
			ln = 1
		}
		p.CellFormat(col, lineHeight+1, w.tr("[x] "+c.Name), "", ln, "L", false, 0, "")
	}
	if app.OtherCommodities != "" {
		p.Ln(2)
		w.subheading("Additional Commodities:")
		w.paragraph(app.OtherCommodities)
	}
}

func (w *writer) nextOfKin(kin []models.NextOfKin) {
	if len(kin) == 0 {
		return
	}
	w.section("NEXT OF KIN DETAILS")
	for i, k := range kin {
		if i > 0 {
			w.pdf.Ln(3)
		}
		w.rows([][2]string{
			{"Full Name:", k.FullName},
			{"Relationship:", k.Relationship},
			{"Address:", k.Address},
			{"Mobile:", k.Mobile},
			{"ID Type:", lookup(idCardTypes, k.IDCardType)},
			{"ID Number:", k.IDCardNumber},
		})
	}
}

func (w *writer) teamMembers(members []models.TeamMember) {
	if len(members) == 0 {
		return
	}
	w.section("CONTACT PERSONS / TEAM MEMBERS")
	for i, m := range members {
		if i > 0 {
			w.pdf.Ln(3)
		}
		w.subheading("Contact Person " + strconv.Itoa(i+1))
		experience := "N/A"
		if m.YearsExperience > 0 {
			experience = strconv.Itoa(m.YearsExperience) + " years"
		}
		w.rows([][2]string{
			{"Full Name:", m.FullName},
			{"Position:", orDefault(m.Position, "Team member")},
			{"Email:", m.Email},
			{"Telephone:", m.Telephone},
			{"Residential Address:", m.Address},
			{"Years of Experience:", experience},
			{"ID Type:", lookup(idCardTypes, m.IDCardType)},
			{"ID Number:", m.IDCardNumber},
		})
	}
}

func (w *writer) bankAccounts(accounts []models.BankAccount) {
	if len(accounts) == 0 {
		return
	}
	w.section("BANK ACCOUNT DETAILS")
	for i, a := range accounts {
		if i > 0 {
			w.pdf.Ln(3)
		}
		w.rows([][2]string{
			{"Bank Name:", a.BankName},
			{"Branch:", a.Branch},
			{"Account Name:", a.AccountName},
			{"Account Number:", a.AccountNumber},
		})
	}
}

func (w *writer) documents(res requirements.Result) {
	p := w.pdf
	w.section("UPLOADED DOCUMENTS")
	total := w.width()
	cols := []float64{total * 0.50, total * 0.18, total * 0.14, total * 0.18}

	p.SetDrawColor(221, 221, 221)
	p.SetFillColor(245, 245, 245)
	p.SetFont("Helvetica", "B", 9)
	for i, h := range []string{"Document Type", "Required", "Upload Date", "Status"} {
		p.CellFormat(cols[i], 7, h, "1", 0, "L", true, 0, "")
	}
	p.Ln(-1)

	p.SetFont("Helvetica", "", 9)
	for _, d := range res.Documents {
		required := "Optional"
		if d.Required {
			required = "Required"
		}
		uploaded := "-"
		if d.UploadedAt != nil {
			uploaded = d.UploadedAt.UTC().Format(uploadedLayout)
		}
		p.CellFormat(cols[0], 7, w.tr(d.Label), "1", 0, "L", false, 0, "")
		p.CellFormat(cols[1], 7, required, "1", 0, "L", false, 0, "")
		p.CellFormat(cols[2], 7, uploaded, "1", 0, "L", false, 0, "")
		switch {
		case d.Satisfied:
			p.SetTextColor(21, 87, 36)
		case d.Required || d.Rejected:
			p.SetTextColor(114, 28, 36)
		}
		p.CellFormat(cols[3], 7, d.State(), "1", 1, "L", false, 0, "")
		p.SetTextColor(0, 0, 0)
	}
	p.SetDrawColor(0, 0, 0)

	if len(res.AdhocRequests) > 0 {
		p.Ln(2)
		w.subheading("Additional documents requested:")
		for _, a := range res.AdhocRequests {
			w.paragraph("- " + a)
		}
	}
}

func (w *writer) declarations(app *models.SupplierApplication) {
	w.section("ABIDANCE BY RULES AND REGULATIONS")
	agreed := "[ ] Yes"
	if app.DeclarationAgreed {
		agreed = "[x] Yes"
	}
	w.paragraph("If accepted as a supplier, do you agree to abide by the Rules and Guidelines? " + agreed)
	consent := "[ ] Yes"
	if app.DataConsent {
		consent = "[x] Yes"
	}
	w.paragraph("Consent to the processing of the data supplied in this application: " + consent)

	w.section("DECLARATION")
	w.paragraph(declarationText)

	signed := "Not Signed"
	if app.SignedAt != nil {
		signed = app.SignedAt.UTC().Format(dateLayout)
	}
	w.section("SIGNATURE")
	w.rows([][2]string{
		{"Name:", orDefault(app.SignerName, "Not Provided")},
		{"Designation:", orDefault(app.SignerDesignation, "Not Provided")},
		{"Date:", signed},
	})
}

func (w *writer) verification(qr []byte, hash string) {
	p := w.pdf
	w.section("DOCUMENT VERIFICATION")
	_, pageH := p.GetPageSize()
	if p.GetY()+qrSize+20 > pageH-margin {
		p.AddPage()
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader("verification-qr", opts, bytes.NewReader(qr))
	x := margin + (w.width()-qrSize)/2
	p.ImageOptions("verification-qr", x, p.GetY(), qrSize, qrSize, false, opts, 0, "")
	p.SetY(p.GetY() + qrSize + 2)

	p.SetFont("Helvetica", "B", 8)
	p.SetTextColor(102, 102, 102)
	p.CellFormat(0, 4, "Scan to verify document authenticity", "", 1, "C", false, 0, "")
	p.SetFont("Helvetica", "", 8)
	p.CellFormat(0, 4, "Document Hash: "+hash[:32]+"...", "", 1, "C", false, 0, "")
	p.SetTextColor(0, 0, 0)
	p.Ln(4)
}

func (w *writer) footer(generatedAt time.Time) {
	p := w.pdf
	y := p.GetY()
	p.SetDrawColor(128, 128, 128)
	p.Line(margin, y, margin+w.width(), y)
	p.SetDrawColor(0, 0, 0)
	p.Ln(3)

	p.SetFont("Helvetica", "", 8)
	p.SetTextColor(102, 102, 102)
	lines := append([]string{
		"This is a system-generated document from the GCX Supplier Application Portal",
		"Generated on " + generatedAt.Format(footerLayout) + " UTC",
		"",
	}, footerLines...)
	for _, l := range lines {
		p.CellFormat(0, 4, w.tr(l), "", 1, "C", false, 0, "")
	}
	p.SetTextColor(0, 0, 0)
}

func lookup(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return orDefault(key, "Not Provided")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
