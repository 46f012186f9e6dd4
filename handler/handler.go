package handler

import (
	"github.com/sirupsen/logrus"

	"askbot/logging"
)

var log *logrus.Logger

func init() {
	log = logging.GetLogger()
}
