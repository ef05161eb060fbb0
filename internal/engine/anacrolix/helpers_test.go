package anacrolix

import "github.com/sirupsen/logrus"

func quietEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}
