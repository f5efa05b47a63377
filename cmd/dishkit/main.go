package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
)

const version = "0.1.0"

// notifySignals 触发 cmd.Context() 取消；SIGKILL 无法捕获，不在其中。
var notifySignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	root := newRootCmd()
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(notifySignals...),
	); err != nil {
		os.Exit(1)
	}
}
