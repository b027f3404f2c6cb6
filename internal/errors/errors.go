package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

// Format formats an error message with a consistent "Error: " prefix and a
// hint for the failure classes an operator can act on
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("Error: %v", err)
	switch {
	case stderrors.Is(err, tracker.ErrNoIdentity):
		msg += "\n       Hint: pass --user or set BETTERU_USER."
	case stderrors.Is(err, ledger.ErrRejected):
		msg += "\n       Hint: the remote ledger rejected the payload; it will not be retried."
	case isRemote(err):
		msg += "\n       Hint: the local value was kept and will be re-pushed by the next reconcile."
	}
	return msg
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		logger.Close()
		os.Exit(1)
	}
}

func isRemote(err error) bool {
	var remote *ledger.RemoteError
	return stderrors.As(err, &remote)
}
