package progress_test

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/channel-liveness/internal/progress"
)

type printSink struct{}

func (printSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fmt.Println(evt.Stage, evt.Completed, "/", evt.Total)
	}
	return nil
}

func (printSink) Close(context.Context) error { return nil }

func ExampleHub() {
	hub := progress.NewHub(progress.Config{MaxBatchWait: time.Minute}, printSink{})
	hub.Emit(progress.Event{RunID: "run-1", TS: time.Now(), Stage: progress.StageRunStart, Total: 3})
	_ = hub.Close(context.Background())
	// Output: RUN_START 0 / 3
}
