package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/channel-liveness/internal/notify"
)

func TestNotifierStoresReports(t *testing.T) {
	t.Parallel()

	n := New()
	require.NoError(t, n.Notify(context.Background(), "plain"))
	require.NoError(t, n.NotifyReport(context.Background(), notify.Report{RunID: "run-1", Text: "report"}))

	require.Equal(t, []string{"plain", "report"}, n.Messages())
	reports := n.Reports()
	require.Equal(t, "run-1", reports[1].RunID)

	reports[0].Text = "modified"
	require.Equal(t, "plain", n.Reports()[0].Text, "expected Reports() to return a copy")
}

func TestNotifierFailWith(t *testing.T) {
	t.Parallel()

	n := New()
	n.FailWith(errors.New("down"))
	require.EqualError(t, n.Notify(context.Background(), "x"), "down")
	require.Empty(t, n.Messages())
}
