package mailer

// Preset carries the connection defaults for a known mail provider.
type Preset struct {
	Provider   string `json:"provider"`
	Label      string `json:"label"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	TLS        bool   `json:"tls"`
	SMTPHost   string `json:"smtpHost"`
	SMTPPort   int    `json:"smtpPort"`
	SMTPSecure bool   `json:"smtpSecure"`
}

var presets = []Preset{
	{Provider: "gmail", Label: "Gmail", Host: "imap.gmail.com", Port: 993, TLS: true, SMTPHost: "smtp.gmail.com", SMTPPort: 587, SMTPSecure: false},
	{Provider: "outlook", Label: "Outlook", Host: "outlook.office365.com", Port: 993, TLS: true, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 587, SMTPSecure: false},
	{Provider: "yahoo", Label: "Yahoo Mail", Host: "imap.mail.yahoo.com", Port: 993, TLS: true, SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 465, SMTPSecure: true},
	{Provider: "icloud", Label: "iCloud Mail", Host: "imap.mail.me.com", Port: 993, TLS: true, SMTPHost: "smtp.mail.me.com", SMTPPort: 587, SMTPSecure: false},
}

// Presets returns the connection defaults for the known providers. The
// "custom" provider has no preset; its settings come entirely from the user.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetFor looks up the preset for a provider tag.
func PresetFor(provider string) (Preset, bool) {
	for _, p := range presets {
		if p.Provider == provider {
			return p, true
		}
	}
	return Preset{}, false
}
