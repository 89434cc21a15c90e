package license

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English text.
const (
	msgRegister = `Please <a href="%s">register</a> <strong>%s</strong> with a valid license key to get access to updates and support.`
	msgMissing  = `Enter valid license key for automatic updates.`
	msgHelp     = `Enter your extension license keys here to receive updates for purchased extensions. If your license key has expired, please <a href="%s" target="_blank">renew your license</a>.`
)

// RenewalURL is linked from the license help text.
const RenewalURL = "http://docs.easydigitaldownloads.com/article/1000-license-renewal"

// SupportedLanguages lists the languages with a translated catalog, in
// matcher preference order.
var SupportedLanguages = []language.Tag{language.English, language.German}

func init() {
	translations := map[string]string{
		msgRegister: `Bitte <a href="%s">registrieren</a> Sie <strong>%s</strong> mit einem gültigen Lizenzschlüssel, um Zugang zu Updates und Support zu erhalten.`,
		msgMissing:  `Geben Sie einen gültigen Lizenzschlüssel für automatische Updates ein.`,
		msgHelp:     `Geben Sie hier Ihre Lizenzschlüssel ein, um Updates für gekaufte Erweiterungen zu erhalten. Falls Ihr Lizenzschlüssel abgelaufen ist, <a href="%s" target="_blank">verlängern Sie bitte Ihre Lizenz</a>.`,
	}
	for key, msg := range translations {
		if err := message.SetString(language.German, key, msg); err != nil {
			panic(err)
		}
	}
}

func printer(lang language.Tag) *message.Printer {
	if lang == language.Und {
		lang = language.English
	}
	return message.NewPrinter(lang)
}
