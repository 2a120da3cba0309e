package mail

import (
	"bytes"
	"html/template"
)

const (
	verifySubject   = "Verify your email"
	farewellSubject = "Goodbye message"
)

var verifyTmpl = template.Must(template.New("verify").Parse(`<html>
  <body>
    <div style="font-family: Arial; padding: 20px;">
      <h2 style="color: #2e7d32;">Verify Your Email - Avanzo</h2>
      <p>Thanks for signing up! Your verification code is:</p>
      <div style="font-size: 24px; font-weight: bold; background-color: #e8f5e9; padding: 10px; color: #1b5e20; border-radius: 8px;">
        {{.Code}}
      </div>
      <p>If you didn't request this, just ignore it.</p>
    </div>
  </body>
</html>`))

var farewellTmpl = template.Must(template.New("farewell").Parse(`<html>
  <body>
    <div style="font-family: Arial; padding: 20px;">
      <h2 style="color: #2e7d32;">Goodbye message - Avanzo</h2>
      <p>We are sorry seeing you leave.</p>
      <p>Hopefully we will see you again.</p>
    </div>
  </body>
</html>`))

func renderVerification(code string) (string, error) {
	var buf bytes.Buffer
	if err := verifyTmpl.Execute(&buf, struct{ Code string }{code}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderFarewell() (string, error) {
	var buf bytes.Buffer
	if err := farewellTmpl.Execute(&buf, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}
