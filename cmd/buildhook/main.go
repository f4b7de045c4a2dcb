package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildhook-io/buildhook/cmd/buildhook/config"
	"github.com/buildhook-io/buildhook/pkg/reporters"
	"github.com/buildhook-io/buildhook/pkg/server"
	"github.com/buildhook-io/buildhook/pkg/streaming"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		logrus.Warnf("could not load .env file, relying on env vars")
	}

	config, err := config.Environ()
	if err != nil {
		logger := logrus.WithError(err)
		logger.Fatalln("main: invalid configuration")
	}

	initLogging(config)

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		fmt.Println(config.String())
	}

	if config.Host == "" {
		panic(fmt.Errorf("please provide the HOST variable"))
	}

	manager := reporters.NewManager()
	err = addReporters(manager, config)
	if err != nil {
		logger := logrus.WithError(err)
		logger.Fatalln("main: invalid reporter configuration")
	}
	go manager.Run()

	ctx, cancel := context.WithCancel(context.Background())
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-stopCh
		cancel()
	}()

	client := &streaming.Client{
		Host: config.Host,
		Handler: func(frame streaming.EventFrame) {
			manager.Broadcast(frame.Key, frame.Build)
		},
	}
	go client.Run(ctx)
	logrus.Info("subscribed to the build event feed")

	go func() {
		err := http.ListenAndServe(":"+config.APIPort, server.Router())
		if err != nil {
			logrus.Errorf("api server: %s", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
}

func addReporters(manager reporters.Manager, config *config.Config) error {
	blocks, err := loadReporterSettings(config)
	if err != nil {
		return err
	}

	for _, settings := range blocks {
		switch settings.Type() {
		case "hipchat":
			reporter, err := reporters.NewHipchatReporter(settings)
			if err != nil {
				return err
			}
			manager.AddReporter(reporter)
		default:
			logrus.Warnf("unknown reporter type %q, skipping", settings.Type())
		}
	}
	return nil
}

func loadReporterSettings(c *config.Config) ([]config.ReporterSettings, error) {
	if _, err := os.Stat(c.ReportersConfig); os.IsNotExist(err) {
		logrus.Warnf("no reporters file at %s, no notifications will be sent", c.ReportersConfig)
		return nil, nil
	}
	return config.LoadReporters(c.ReportersConfig)
}

// helper function configures the logging.
func initLogging(c *config.Config) {
	if c.Logging.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if c.Logging.Trace {
		logrus.SetLevel(logrus.TraceLevel)
	}
	if c.Logging.Text {
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   c.Logging.Color,
			DisableColors: !c.Logging.Color,
		})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{
			PrettyPrint: c.Logging.Pretty,
		})
	}
}
