package alerts

import gomail "github.com/wneessen/go-mail"

func BuildEmailMessage(e *EmailSink, event Event) (*gomail.Msg, bool, error) {
	return e.buildMessage(event)
}
