package identity

import (
	"context"
	"strings"
	"text/template"
)

// Notification is an out of band message sent to an account holder
type Notification struct {
	To      string
	Subject string
	Body    string
}

// NotificationSink delivers notifications. Delivery failures never fail the
// triggering operation, handlers log and move on.
type NotificationSink interface {
	Send(ctx context.Context, msg Notification) error
}

const verificationEmailTmpl = `Hi {{.Name}},

Welcome to {{.AppName}}. Confirm your email address by opening:

{{.BaseURL}}/auth/verify-email/?uid={{.UID}}&token={{.Token}}

If you did not create this account you can ignore this message.
`

const passwordResetEmailTmpl = `Hi {{.Name}},

We received a request to reset your password. Open the link below to pick a
new one:

{{.BaseURL}}/auth/password-reset/?uid={{.UID}}&token={{.Token}}

The link expires in 24 hours. If you did not ask for a reset you can ignore
this message.
`

const hrWelcomeEmailTmpl = `Hi {{.Name}},

An administrator created a recruiter account for you on {{.AppName}}. Set
your password to activate it:

{{.BaseURL}}/hr/set-password/?uid={{.UID}}&token={{.Token}}
`

const randomPasswordEmailTmpl = `Hi {{.Name}},

Your account password was reset by an administrator. Your temporary
password is:

{{.Password}}

Sign in and change it as soon as possible.
`

var notificationTemplates = template.Must(template.New("verification").Parse(verificationEmailTmpl))

func init() {
	template.Must(notificationTemplates.New("password_reset").Parse(passwordResetEmailTmpl))
	template.Must(notificationTemplates.New("hr_welcome").Parse(hrWelcomeEmailTmpl))
	template.Must(notificationTemplates.New("random_password").Parse(randomPasswordEmailTmpl))
}

// NotificationContext carries the values interpolated into message bodies
type NotificationContext struct {
	Name     string
	AppName  string
	BaseURL  string
	UID      string
	Token    string
	Password string
}

// RenderNotification expands the named template with the given context
func RenderNotification(name string, data NotificationContext) (string, error) {
	var buf strings.Builder
	if err := notificationTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogNotificationSink writes notifications to the logger instead of
// delivering them. It stands in for a mail transport during development.
type LogNotificationSink struct {
	logger Logger
}

func NewLogNotificationSink(logger Logger) *LogNotificationSink {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotificationSink{logger: logger}
}

func (s *LogNotificationSink) Send(ctx context.Context, msg Notification) error {
	s.logger.Info("notification dispatched", "to", msg.To, "subject", msg.Subject)
	s.logger.Debug("notification body", "body", msg.Body)
	return nil
}

type noopNotificationSink struct{}

func (noopNotificationSink) Send(ctx context.Context, msg Notification) error {
	return nil
}

func normalizeNotificationSink(sink NotificationSink) NotificationSink {
	if sink == nil {
		return noopNotificationSink{}
	}
	return sink
}
