package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannels struct {
	published map[string][][]byte
}

func (f *fakeChannels) Publish(ctx context.Context, channel string, payload []byte) error {
	if f.published == nil {
		f.published = make(map[string][][]byte)
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func TestEventPusherEnvelope(t *testing.T) {
	channels := &fakeChannels{}
	p := NewEventPusher(channels, nil, nil)

	err := p.Publish(context.Background(), "account-7", "account", map[string]string{"currency": "btccny"})
	require.NoError(t, err)

	require.Len(t, channels.published["account-7"], 1)
	var ev PushEvent
	require.NoError(t, json.Unmarshal(channels.published["account-7"][0], &ev))
	assert.Equal(t, "account-7", ev.Channel)
	assert.Equal(t, "account", ev.Event)
	data := ev.Data.(map[string]interface{})
	assert.Equal(t, "btccny", data["currency"])
}
