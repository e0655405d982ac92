package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logrus builds component-scoped loggers with a shared level and output.
type Logrus struct {
	level  string
	output io.Writer
}

// NewLogrus creates a new logger factory.
func NewLogrus(level string, output io.Writer) *Logrus {
	return &Logrus{level: level, output: output}
}

// Get returns a logger entry tagged with the given component name.
func (l *Logrus) Get(component string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(l.output)

	return log.WithFields(logrus.Fields{
		"component": component,
	})
}
