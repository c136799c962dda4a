//go:build !linux

package cpuaffinity

import "github.com/sirupsen/logrus"

func bindToCore(coreIndex int) error {
	logrus.WithField("core", coreIndex).Warn("cpu pinning requested but not supported on this platform")
	return nil
}
