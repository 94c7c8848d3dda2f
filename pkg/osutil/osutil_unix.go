// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package osutil

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// HandleInterrupts calls shutdown on first SIGINT/SIGTERM
// (expecting that the program will gracefully shutdown and exit)
// and terminates the process on third signal.
func HandleInterrupts(shutdown func()) {
	go func() {
		c := make(chan os.Signal, 3)
		signal.Notify(c, unix.SIGINT, unix.SIGTERM)
		<-c
		shutdown()
		fmt.Fprint(os.Stderr, "SIGINT: shutting down...\n")
		<-c
		fmt.Fprint(os.Stderr, "SIGINT: shutting down harder...\n")
		<-c
		fmt.Fprint(os.Stderr, "SIGINT: terminating\n")
		os.Exit(int(unix.SIGINT))
	}()
}

// ExitStatus describes how a finished process terminated.
type ExitStatus struct {
	// Code is the exit code for ordinary exits and -1 if the process was killed by a signal.
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

func (st ExitStatus) String() string {
	if st.Signaled {
		return fmt.Sprintf("signal %v", SignalName(st.Signal))
	}
	return fmt.Sprintf("exit code %v", st.Code)
}

// ProcessExitStatus returns process exit status.
func ProcessExitStatus(ps *os.ProcessState) ExitStatus {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{Code: ps.ExitCode()}
	}
	if ws.Signaled() {
		return ExitStatus{Code: -1, Signaled: true, Signal: ws.Signal()}
	}
	return ExitStatus{Code: ws.ExitStatus()}
}

// SignalExitCode is the exit code a shell-like wrapper reports for a child killed by sig.
func SignalExitCode(sig syscall.Signal) int {
	return 128 + int(sig)
}

// SignalName returns the symbolic name of sig (e.g. SIGSEGV).
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}
