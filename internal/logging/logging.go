package logging

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Config sends every log entry to dest, tagged with prefix.
func Config(dest, prefix string) error {
	f, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	log.SetOutput(f)
	log.SetReportCaller(true)
	log.SetFormatter(&prefixFormatter{
		prefix: prefix,
		inner: &log.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		},
	})
	return nil
}

type prefixFormatter struct {
	prefix string
	inner  log.Formatter
}

func (f *prefixFormatter) Format(entry *log.Entry) ([]byte, error) {
	line, err := f.inner.Format(entry)
	if err != nil {
		return nil, err
	}
	return append([]byte(f.prefix), line...), nil
}
