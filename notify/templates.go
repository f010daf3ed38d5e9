package notify

import (
	"fmt"
	"strings"
	"text/template"
)

type messageTemplate struct {
	subject *template.Template
	email   *template.Template
	sms     *template.Template
}

type rendered struct {
	Subject string
	Email   string
	SMS     string
}

func mustTemplate(kind Kind, subject, email, sms string) messageTemplate {
	name := string(kind)
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		email:   template.Must(template.New(name + ".email").Option("missingkey=zero").Parse(email)),
		sms:     template.Must(template.New(name + ".sms").Option("missingkey=zero").Parse(sms)),
	}
}

var templates = map[Kind]messageTemplate{
	KindSubmitted: mustTemplate(KindSubmitted,
		`GCX Supplier Application Received - {{.TrackingCode}}`,
		`Dear {{.BusinessName}},

Thank you for applying to become a GCX supplier. Your application has been received and is pending review.

Tracking code: {{.TrackingCode}}
{{with index .Context "status_url"}}Check your status at: {{.}}
{{end}}
Ghana Commodity Exchange`,
		`GCX: Application {{.TrackingCode}} received. We will contact you after review.`,
	),
	KindDocumentsRequested: mustTemplate(KindDocumentsRequested,
		`Additional Documents Required - {{.TrackingCode}}`,
		`Dear {{.BusinessName}},

Our review of application {{.TrackingCode}} needs further documents from you.
{{with index .Context "documents"}}
Documents requested:
{{.}}
{{end}}{{with index .Context "message"}}
Message from the review team:
{{.}}
{{end}}{{with index .Context "completion_url"}}
Upload them here: {{.}}
{{end}}{{with index .Context "deadline"}}Please submit before {{.}}.
{{end}}
Ghana Commodity Exchange`,
		`GCX: More documents are needed for application {{.TrackingCode}}. Please check your email.`,
	),
	KindApproved: mustTemplate(KindApproved,
		`GCX Supplier Application Approved - {{.TrackingCode}}`,
		`Dear {{.BusinessName}},

Congratulations. Your application {{.TrackingCode}} has been approved and you are now a registered GCX supplier.
{{with index .Context "temporary_password"}}
A supplier account has been created for you.
Username: {{index $.Context "username"}}
Temporary password: {{.}}
Please change this password after your first login.
{{end}}{{with index .Context "login_url"}}Sign in at: {{.}}
{{end}}
Ghana Commodity Exchange`,
		`GCX: Congratulations! Application {{.TrackingCode}} has been approved. Check your email for details.`,
	),
	KindRejected: mustTemplate(KindRejected,
		`GCX Supplier Application Update - {{.TrackingCode}}`,
		`Dear {{.BusinessName}},

After careful review we are unable to approve application {{.TrackingCode}} at this time.
{{with index .Context "reason"}}
Reason: {{.}}
{{end}}
You are welcome to apply again once the points above are addressed.

Ghana Commodity Exchange`,
		`GCX: Application {{.TrackingCode}} was not approved. Check your email for details.`,
	),
	KindDocumentRejected: mustTemplate(KindDocumentRejected,
		`Document Not Accepted - {{.TrackingCode}}`,
		`Dear {{.BusinessName}},

The document "{{index .Context "document"}}" submitted for application {{.TrackingCode}} was not accepted.
{{with index .Context "reason"}}
Reason: {{.}}
{{end}}{{with index .Context "completion_url"}}
Please upload a replacement here: {{.}}
{{end}}
Ghana Commodity Exchange`,
		``,
	),
}

func render(msg Message) (rendered, error) {
	tpl, ok := templates[msg.Kind]
	if !ok {
		return rendered{}, fmt.Errorf("no template for notification kind %q", msg.Kind)
	}
	data := struct {
		TrackingCode string
		BusinessName string
		Context      map[string]string
	}{msg.TrackingCode, msg.BusinessName, msg.Context}
	if data.Context == nil {
		data.Context = map[string]string{}
	}

	var out rendered
	for _, part := range []struct {
		tpl *template.Template
		dst *string
	}{
		{tpl.subject, &out.Subject},
		{tpl.email, &out.Email},
		{tpl.sms, &out.SMS},
	} {
		var b strings.Builder
		if err := part.tpl.Execute(&b, data); err != nil {
			return rendered{}, fmt.Errorf("render %s: %w", part.tpl.Name(), err)
		}
		*part.dst = strings.TrimSpace(b.String())
	}
	return out, nil
}
