package notify

import (
	"bytes"
	"html/template"

	"esim-payments/internal/domain"
)

const ProvisionSubject = "Your eSIM is Ready!"

var provisionTmpl = template.Must(template.New("provision").Parse(`
<h2>Your eSIM has been successfully provisioned!</h2>
<p>Transaction ID: {{.TransactionID}}</p>
<p>ICCID: {{.ICCID}}</p>
<p>Activation Code: {{.ActivationCode}}</p>
<p>Scan the QR code to activate your eSIM:</p>
<img src="{{.QRCodeURL}}" alt="eSIM QR Code" style="max-width: 300px;">
<p>Thank you for choosing eSIM Myanmar!</p>
`))

func ProvisionEmail(p *domain.ESIMProvision) (string, error) {
	var buf bytes.Buffer
	if err := provisionTmpl.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
