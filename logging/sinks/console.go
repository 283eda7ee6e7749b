package sinks

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mortu/Controllable-Mobs-API/logging"
)

// ConsoleSink renders events through logrus. Severity filtering happens in
// the router, so the logger itself accepts every level.
type ConsoleSink struct {
	logger *logrus.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.DebugLevel)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   cfg.UseColor,
			DisableColors: !cfg.UseColor,
		})
	}
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	fields := logrus.Fields{
		"tick":  event.Tick,
		"actor": formatEntity(event.Actor),
	}
	if event.Category != "" {
		fields["category"] = event.Category
	}
	if len(event.Targets) > 0 {
		targets := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			targets = append(targets, formatEntity(target))
		}
		fields["targets"] = targets
	}
	if event.Payload != nil {
		fields["payload"] = event.Payload
	}
	for k, v := range event.Extra {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}
	entry := s.logger.WithFields(fields)
	if !event.Time.IsZero() {
		entry = entry.WithTime(event.Time)
	}
	entry.Log(levelFor(event.Severity), string(event.Type))
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func levelFor(sev logging.Severity) logrus.Level {
	switch sev {
	case logging.SeverityDebug:
		return logrus.DebugLevel
	case logging.SeverityWarn:
		return logrus.WarnLevel
	case logging.SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}
