package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/luminagoods/site/src/ansicolor"
	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/oops"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.ErrorStackMarshaler = oops.ZerologStackMarshaler
	if config.Config.LogFormat != "json" {
		log.Logger = log.Output(NewPrettyZerologWriter(os.Stderr))
	}
	zerolog.SetGlobalLevel(config.Config.LogLevel)
}

func GlobalLogger() *zerolog.Logger {
	return &log.Logger
}

func Debug() *zerolog.Event {
	return log.Debug().Timestamp().Stack()
}

func Info() *zerolog.Event {
	return log.Info().Timestamp().Stack()
}

func Warn() *zerolog.Event {
	return log.Warn().Timestamp().Stack()
}

func Error() *zerolog.Event {
	return log.Error().Timestamp().Stack()
}

func Fatal() *zerolog.Event {
	return log.Fatal().Timestamp().Stack()
}

func With() zerolog.Context {
	return log.With().Stack()
}

type loggerKey struct{}

func AttachLoggerToContext(logger *zerolog.Logger, ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// ExtractLogger returns the logger attached to ctx, or the global logger.
func ExtractLogger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return GlobalLogger()
}

type PrettyZerologWriter struct {
	out                 io.Writer
	wd                  string
	wasLastLogMultiline bool
}

type prettyLogEntry struct {
	Timestamp   string
	Level       string
	Message     string
	Error       string
	StackTrace  []interface{}
	OtherFields []prettyField
}

type prettyField struct {
	Name  string
	Value interface{}
}

var ColorFromLevel = map[string]*string{
	"trace": &ansicolor.Gray,
	"debug": &ansicolor.Gray,
	"info":  &ansicolor.BgBlue,
	"warn":  &ansicolor.BgYellow,
	"error": &ansicolor.BgRed,
	"fatal": &ansicolor.BgRed,
	"panic": &ansicolor.BgRed,
}

func NewPrettyZerologWriter(out io.Writer) *PrettyZerologWriter {
	wd, _ := os.Getwd()
	return &PrettyZerologWriter{
		out: out,
		wd:  wd,
	}
}

func (w *PrettyZerologWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return w.out.Write(p)
	}

	var entry prettyLogEntry
	for name, val := range fields {
		switch name {
		case zerolog.TimestampFieldName:
			entry.Timestamp, _ = val.(string)
		case zerolog.LevelFieldName:
			entry.Level, _ = val.(string)
		case zerolog.MessageFieldName:
			entry.Message, _ = val.(string)
		case zerolog.ErrorFieldName:
			entry.Error, _ = val.(string)
		case zerolog.ErrorStackFieldName:
			entry.StackTrace, _ = val.([]interface{})
		default:
			entry.OtherFields = append(entry.OtherFields, prettyField{Name: name, Value: val})
		}
	}
	sort.Slice(entry.OtherFields, func(i, j int) bool {
		return entry.OtherFields[i].Name < entry.OtherFields[j].Name
	})

	isMultiline := entry.Error != "" || entry.StackTrace != nil || entry.OtherFields != nil

	var b strings.Builder
	if isMultiline || w.wasLastLogMultiline {
		b.WriteString("---------------------------------------\n")
	}
	b.WriteString(entry.Timestamp)
	b.WriteString(" ")
	if entry.Level != "" {
		if c, ok := ColorFromLevel[entry.Level]; ok {
			b.WriteString(*c)
		}
		b.WriteString(ansicolor.Bold)
		b.WriteString(strings.ToUpper(entry.Level))
		b.WriteString(ansicolor.Reset)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	b.WriteString("\n")
	if entry.Error != "" {
		b.WriteString("  " + ansicolor.Bold + ansicolor.Red + "ERROR:" + ansicolor.Reset + " ")
		b.WriteString(entry.Error)
		b.WriteString("\n")
	}
	if len(entry.OtherFields) > 0 {
		b.WriteString("  " + ansicolor.Bold + ansicolor.Blue + "Fields:" + ansicolor.Reset + "\n")
		for _, field := range entry.OtherFields {
			valuePretty, _ := json.MarshalIndent(field.Value, "    ", "  ")
			b.WriteString("    ")
			b.WriteString(field.Name)
			b.WriteString(": ")
			b.Write(valuePretty)
			b.WriteString("\n")
		}
	}
	if entry.StackTrace != nil {
		b.WriteString("  " + ansicolor.Bold + ansicolor.Blue + "Stack trace:" + ansicolor.Reset + "\n")
		for _, frame := range entry.StackTrace {
			frameMap, ok := frame.(map[string]interface{})
			if !ok {
				continue
			}
			file, _ := frameMap["file"].(string)
			function, _ := frameMap["function"].(string)
			line, _ := frameMap["line"].(float64)

			b.WriteString("    ")
			b.WriteString(function)
			b.WriteString(" (")
			b.WriteString(strings.Replace(file, w.wd, ".", 1))
			b.WriteString(":")
			b.WriteString(strconv.Itoa(int(line)))
			b.WriteString(")\n")
		}
	}

	w.wasLastLogMultiline = isMultiline

	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func LogPanics(logger *zerolog.Logger) {
	if r := recover(); r != nil {
		LogPanicValue(logger, r, "recovered from panic")
	}
}

func LogPanicValue(logger *zerolog.Logger, val interface{}, msg string) {
	if logger == nil {
		logger = GlobalLogger()
	}

	if err, ok := val.(error); ok {
		l := logger.Error().Err(err)
		if _, ok := err.(*oops.Error); !ok {
			l = l.Interface(zerolog.ErrorStackFieldName, oops.Trace())
		}
		l.Msg(msg)
	} else {
		logger.Error().
			Interface("recovered", val).
			Interface(zerolog.ErrorStackFieldName, oops.Trace()).
			Msg(msg)
	}
}
