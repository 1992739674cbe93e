package config

// MailConfig selects and configures the outgoing mail transport.
//
//   MAIL_DRIVER         smtp | mailersend | log (default log)
//   MAIL_FROM           sender address
//   MAIL_FROM_NAME      sender display name
//   ADMIN_EMAIL         recipient of new-booking notices and the daily digest
//   SMTP_HOST/PORT/USER/PASS/TLS
//   MAILERSEND_API_KEY
type MailConfig struct {
	Driver           string
	From             string
	FromName         string
	AdminEmail       string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPass         string
	SMTPUseTLS       bool
	MailerSendAPIKey string
}

func LoadMailConfig() MailConfig {
	return MailConfig{
		Driver:           envStr("MAIL_DRIVER", "log"),
		From:             envStr("MAIL_FROM", "no-reply@localhost"),
		FromName:         envStr("MAIL_FROM_NAME", "Barbería"),
		AdminEmail:       envStr("ADMIN_EMAIL", ""),
		SMTPHost:         envStr("SMTP_HOST", "localhost"),
		SMTPPort:         envInt("SMTP_PORT", 1025),
		SMTPUser:         envStr("SMTP_USER", ""),
		SMTPPass:         envStr("SMTP_PASS", ""),
		SMTPUseTLS:       envBool("SMTP_TLS", false),
		MailerSendAPIKey: envStr("MAILERSEND_API_KEY", ""),
	}
}
