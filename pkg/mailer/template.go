package mailer

import (
	"bytes"
	"html/template"
)

var verificationTmpl = template.Must(template.New("verify").Parse(`<html>
  <body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0;">
    <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; padding: 20px; border-radius: 8px;">
      <h1 style="color: #333333;">Confirm your email</h1>
      <p style="color: #555555; line-height: 1.6;">Hello!</p>
      <p style="color: #555555; line-height: 1.6;">Thank you for registering. To finish verifying your email address, please follow the link below:</p>
      <p><a href="{{.Link}}" style="display: inline-block; padding: 10px 20px; background-color: #007BFF; color: #ffffff; text-decoration: none; border-radius: 5px; font-weight: bold;">Confirm account</a></p>
      <p style="color: #555555; line-height: 1.6;">If you did not register, simply ignore this message.</p>
      <div style="margin-top: 20px; text-align: center; color: #999999; font-size: 12px;">The clinic team</div>
    </div>
  </body>
</html>`))

// RenderVerificationEmail produces the HTML body for the confirmation mail.
func RenderVerificationEmail(link string) (string, error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
