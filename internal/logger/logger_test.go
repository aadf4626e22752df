package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureSwitchesWireFormatWithoutPanic(t *testing.T) {
	require.NotPanics(t, func() { Configure("json") })
	require.NotPanics(t, func() { Configure("console") })
}

func TestWithTagsComponentOnSubLogger(t *testing.T) {
	Configure("json")
	sub := With("execution")
	require.NotPanics(t, func() { sub.Info("placed order") })
	require.NotPanics(t, func() { sub.Raw().Info().Msg("placed order") })
}

func TestPackageLevelHelpersDoNotPanic(t *testing.T) {
	Configure("console")
	require.NotPanics(t, func() {
		Info("hello")
		Infof("hello %s", "world")
		Warn("careful")
		Warnf("careful %d", 1)
		Debug("debug line")
		Debugf("debug %d", 2)
		ErrorErr(require.AnError, "failed")
		WarnErr(require.AnError, "degraded")
	})
}
