package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/sergeknystautas/fab/internal/forest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, forest.ErrReported) {
		a.style().Error("%v", err)
	}
	stop()
	os.Exit(1)
}
