package notifier

import (
	"fmt"
	"io"
	"os"
)

type StdoutNotifier struct {
	name string
	out  io.Writer
}

func NewStdoutNotifier(name string) (*StdoutNotifier, error) {
	return &StdoutNotifier{
		name: name,
		out:  os.Stdout,
	}, nil
}

func (sout *StdoutNotifier) Name() string {
	return sout.name
}

func (sout *StdoutNotifier) Send(data NotificationData, templates NotificationTemplates) error {
	msg, err := RenderMessage(templates, data)
	if err != nil {
		return fmt.Errorf("failed to render stdout message for '%s': %w", data.Category, err)
	}

	_, err = fmt.Fprintf(sout.out, "Alert triggered: %s\n", msg)
	return err
}
