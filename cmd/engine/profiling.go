package engine

import (
	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"
)

// startProfiler attaches the process to a Pyroscope server. The returned stop
// function is always safe to call.
func startProfiler(config *Config, log *logrus.Entry) func() {
	if config.PyroscopeServerAddress == "" {
		return func() {}
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: config.AppName,
		ServerAddress:   config.PyroscopeServerAddress,
		Tags: map[string]string{
			"env": config.Env,
		},
		Logger: log.WithField("component", "pyroscope"),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		log.WithError(err).Warn("pyroscope start failed, continuing without profiling")
		return func() {}
	}

	log.WithField("server", config.PyroscopeServerAddress).Info("continuous profiling enabled")
	return func() {
		_ = profiler.Stop()
	}
}
