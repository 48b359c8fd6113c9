package mail

import (
	"github.com/techknowlogia/core/internal/config"
)

// BuildMailConfig maps the application config onto a mail.Config.
func BuildMailConfig(cfg *config.AppConfig) Config {
	if cfg == nil {
		return Config{Provider: ProviderLog}
	}
	return Config{
		Provider:    cfg.Mail.Provider,
		From:        cfg.Mail.From,
		ReplyTo:     cfg.Mail.ReplyTo,
		ResendKey:   cfg.Mail.ResendKey,
		SendGridKey: cfg.Mail.SendGridKey,
		Host:        cfg.Mail.SMTP.Host,
		Port:        cfg.Mail.SMTP.Port,
		User:        cfg.Mail.SMTP.User,
		Pass:        cfg.Mail.SMTP.Pass,
	}
}
