package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/channel-liveness/internal/app"
	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/clock/system"
	"github.com/JakeFAU/channel-liveness/internal/controller"
	notifymemory "github.com/JakeFAU/channel-liveness/internal/notify/memory"
	"github.com/JakeFAU/channel-liveness/internal/notify/webhook"
	"github.com/JakeFAU/channel-liveness/internal/progress"
	storagememory "github.com/JakeFAU/channel-liveness/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)

type proberFunc func(ctx context.Context, rawURL string) channel.ProbeOutcome

func (f proberFunc) Probe(ctx context.Context, rawURL string) channel.ProbeOutcome {
	return f(ctx, rawURL)
}

type fixedIDs string

func (f fixedIDs) NewID() (string, error) { return string(f), nil }

type failingLister struct{}

func (failingLister) ListChannels(context.Context) ([]channel.Channel, error) {
	return nil, errors.New("database is locked")
}

func onlineUnlessDown() proberFunc {
	return func(_ context.Context, rawURL string) channel.ProbeOutcome {
		if strings.Contains(rawURL, "down") {
			return channel.ProbeOutcome{Error: "Connection refused"}
		}
		return channel.ProbeOutcome{Success: true}
	}
}

func newController(p channel.Prober) *controller.Controller {
	return controller.New(p,
		controller.WithClock(system.NewManual(testNow)),
		controller.WithIDGenerator(fixedIDs("run-1")),
	)
}

func testChannels() []channel.Channel {
	return []channel.Channel{
		{ID: "1", Name: "CCTV-1", URL: "http://up.example/1.m3u8"},
		{ID: "2", Name: "CCTV-2", URL: "http://down.example/2.m3u8"},
	}
}

func TestTriggerArchivesAndNotifies(t *testing.T) {
	t.Parallel()

	store := storagememory.NewChannelStore(testChannels())
	archive := storagememory.NewReportArchive()
	notifier := notifymemory.New()
	svc := app.New(store, newController(onlineUnlessDown()),
		app.WithArchive(archive),
		app.WithNotifier(notifier),
		app.WithLocation(time.FixedZone("CST", 8*3600)),
	)

	done, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	final := <-done
	require.Equal(t, channel.RunCompleted, final.Status)
	require.Equal(t, 2, final.Completed)

	text, ok := archive.Report("run-1")
	require.True(t, ok)
	require.Contains(t, text, "Checked at: 2025-03-01 10:00:00")

	reports := notifier.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, "run-1", reports[0].RunID)
	require.Equal(t, channel.RunCompleted, reports[0].Status)
	require.Equal(t, text, reports[0].Text)
	require.NotNil(t, reports[0].Summary)
	require.Equal(t, 1, reports[0].Summary.Online)
	require.Equal(t, 1, reports[0].Summary.Offline)

	require.NoError(t, svc.Wait(context.Background()))
}

func TestTriggerPassesControllerErrors(t *testing.T) {
	t.Parallel()

	empty := app.New(storagememory.NewChannelStore(nil), newController(onlineUnlessDown()))
	_, err := empty.Trigger(context.Background())
	require.ErrorIs(t, err, controller.ErrNoChannels)

	_, err = app.New(failingLister{}, newController(onlineUnlessDown())).Trigger(context.Background())
	require.ErrorContains(t, err, "list channels: database is locked")
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ctrl := newController(proberFunc(func(ctx context.Context, _ string) channel.ProbeOutcome {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return channel.ProbeOutcome{Success: true}
	}))
	svc := app.New(storagememory.NewChannelStore(testChannels()), ctrl)

	done, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	_, err = svc.Trigger(context.Background())
	require.ErrorIs(t, err, controller.ErrRunActive)

	// The scheduled path skips instead of failing.
	require.NoError(t, svc.TriggerAndWait(context.Background()))

	close(release)
	require.Equal(t, channel.RunCompleted, (<-done).Status)
}

func TestTriggerAndWaitReportsListingFailure(t *testing.T) {
	t.Parallel()

	notifier := notifymemory.New()
	svc := app.New(failingLister{}, newController(onlineUnlessDown()),
		app.WithNotifier(notifier),
		app.WithClock(system.NewManual(testNow)),
	)

	err := svc.TriggerAndWait(context.Background())
	require.Error(t, err)

	msgs := notifier.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "⚠️ Scheduled channel test failed\n\nTime: 2025-03-01 02:00:00\nError: list channels: database is locked", msgs[0])
}

func TestTriggerAndWaitBlocksUntilDelivered(t *testing.T) {
	t.Parallel()

	notifier := notifymemory.New()
	svc := app.New(storagememory.NewChannelStore(testChannels()), newController(onlineUnlessDown()),
		app.WithNotifier(notifier),
	)
	require.NoError(t, svc.TriggerAndWait(context.Background()))
	require.Len(t, notifier.Reports(), 1)
}

type stalledSink struct{}

func (stalledSink) Consume(context.Context, []progress.Event) error {
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (stalledSink) Close(context.Context) error { return nil }

func TestTriggerAndWaitPersistsEveryResult(t *testing.T) {
	t.Parallel()

	chans := make([]channel.Channel, 500)
	for i := range chans {
		host := "up"
		if i%3 == 0 {
			host = "down"
		}
		chans[i] = channel.Channel{ID: fmt.Sprintf("c%03d", i), Name: fmt.Sprintf("Channel %d", i), URL: "http://" + host + ".example/live"}
	}
	store := storagememory.NewChannelStore(chans)
	hub := progress.NewHub(progress.Config{BufferSize: 4, MaxBatchEvents: 2}, stalledSink{})
	ctrl := controller.New(onlineUnlessDown(),
		controller.WithClock(system.NewManual(testNow)),
		controller.WithIDGenerator(fixedIDs("run-1")),
		controller.WithResultWriter(store),
		controller.WithEmitter(hub),
	)
	svc := app.New(store, ctrl, app.WithNotifier(notifymemory.New()))

	require.NoError(t, svc.TriggerAndWait(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	final := ctrl.GetProgress()
	require.NotNil(t, final)
	require.Equal(t, len(chans), final.Completed)
	checked := 0
	for _, st := range store.States() {
		if st.LastCheckedAt == nil {
			continue
		}
		checked++
		want := channel.StatusOnline
		if strings.Contains(st.URL, "down") {
			want = channel.StatusOffline
		}
		require.Equal(t, want, st.Status, st.ID)
	}
	require.Equal(t, final.Completed, checked)
}

func TestDeliveryFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	notifier := notifymemory.New()
	notifier.FailWith(errors.New("robot muted"))
	svc := app.New(storagememory.NewChannelStore(testChannels()), newController(onlineUnlessDown()),
		app.WithNotifier(notifier),
	)
	done, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	require.Equal(t, channel.RunCompleted, (<-done).Status)
}

type recordingWebhook struct {
	*notifymemory.Notifier
	kind webhook.Kind
}

func (r recordingWebhook) Kind() webhook.Kind { return r.kind }

func TestTestWebhook(t *testing.T) {
	t.Parallel()

	hook := recordingWebhook{Notifier: notifymemory.New(), kind: webhook.KindFeishu}
	svc := app.New(storagememory.NewChannelStore(nil), newController(onlineUnlessDown()),
		app.WithWebhooks(map[string]app.Webhook{"ops": hook}),
		app.WithClock(system.NewManual(testNow)),
	)

	require.NoError(t, svc.TestWebhook(context.Background(), "ops"))
	msgs := hook.Messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "Feishu webhook")
	require.Contains(t, msgs[0], "Sent at: 2025-03-01 02:00:00")

	require.ErrorIs(t, svc.TestWebhook(context.Background(), "missing"), app.ErrUnknownWebhook)

	hook.FailWith(errors.New("bad token"))
	require.ErrorContains(t, svc.TestWebhook(context.Background(), "ops"), "test webhook ops: bad token")
}
