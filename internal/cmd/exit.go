package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// osExit is swapped out in tests.
var osExit = os.Exit

// ExitWithCode logs err with foundry exit code metadata and exits. A nil
// logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if _, known := foundry.GetExitCodeInfo(exitCode); logger == nil || !known {
		writeFatal(os.Stderr, exitCode, msg, err)
	} else {
		logger.Error(msg, exitFields(exitCode, err)...)
	}
	osExit(exitStatus(exitCode))
}

// ExitWithCodeStderr is for failures before the CLI logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	writeFatal(os.Stderr, exitCode, msg, err)
	osExit(exitStatus(exitCode))
}

func exitStatus(exitCode foundry.ExitCode) int {
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		return info.Code
	}
	return int(exitCode)
}

func exitFields(exitCode foundry.ExitCode, err error) []zap.Field {
	info, _ := foundry.GetExitCodeInfo(exitCode)
	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_description", info.Description),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	return append(fields, zap.Error(err))
}

// writeFatal prints the failure and, when the code is catalogued, its name
// and description.
func writeFatal(w io.Writer, exitCode foundry.ExitCode, msg string, err error) {
	switch envelope, isEnvelope := err.(*errors.ErrorEnvelope); {
	case err == nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case isEnvelope:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if original, ok := envelope.Original.(error); ok {
			fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}

	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		return
	}
	fmt.Fprintf(w, "Exit Code: %d\n", exitCode)
}
