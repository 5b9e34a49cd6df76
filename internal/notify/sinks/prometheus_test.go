package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteiq/siteiq/internal/notify"
)

func TestPrometheusSinkCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	evt := notify.TurnEvent{
		Owner:          "user-1",
		ConversationID: "conv-1",
		At:             time.Now().UTC(),
	}
	evt.NewConversation = true
	require.NoError(t, sink.Consume(context.Background(), evt))
	evt.NewConversation = false
	require.NoError(t, sink.Consume(context.Background(), evt))
	require.NoError(t, sink.Consume(context.Background(), evt))

	assert.InDelta(t, 1, testutil.ToFloat64(sink.conversationsTotal), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(sink.turnsTotal.WithLabelValues("true")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(sink.turnsTotal.WithLabelValues("false")), 0.001)
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	assert.Error(t, err)
}
