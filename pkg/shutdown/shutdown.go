// Package shutdown handles fatal startup errors: it writes a crash dump
// with goroutine stacks next to the database so operators can diagnose a
// server that refuses to come up.
package shutdown

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"dialogd/pkg/logger"
)

// Abort logs the fatal error, writes a crash dump and exits with code 2.
func Abort(contextMsg string, err error, dbPath string) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, derr := writeCrashDump(dbPath, contextMsg, err)
	if derr != nil {
		fmt.Fprintf(os.Stderr, "failed to write crash dump: %v\n", derr)
	} else {
		logger.Error("startup_fatal_crashdump", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "crash dump written: %s\n", dumpPath)
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", contextMsg, err)
	os.Exit(2)
}

// writeCrashDump writes reason, error and all goroutine stacks into
// <dbPath>/crash/crash-<ts>.log (./crash when no db path is known). The dump
// is staged in a temp file and renamed into place so readers never see a
// partial file.
func writeCrashDump(dbPath, reason string, cause error) (string, error) {
	dir := "./crash"
	if dbPath != "" {
		dir = filepath.Join(dbPath, "crash")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, ".crash-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", cause)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	_ = f.Sync()
	_ = f.Close()

	dumpPath := filepath.Join(dir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))
	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", err
	}
	_ = os.Chmod(dumpPath, 0o600)
	return dumpPath, nil
}
