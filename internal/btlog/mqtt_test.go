package btlog

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/bte/internal/bt"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu           sync.Mutex
	messages     []published
	token        func() mqtt.Token
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic, qos, retained, payload.([]byte)})
	if p.token != nil {
		return p.token()
	}
	return completedToken(nil)
}

func (p *fakePublisher) Disconnect(uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = true
}

func TestMQTT_Publish(t *testing.T) {
	t.Parallel()

	pub := new(fakePublisher)
	m := NewMQTT(pub, "robots/r1/bt", WithQoS(1), WithRetained(true))

	batch := []bt.Transition{transition(0), transition(1)}
	require.NoError(t, m.WriteBatch(context.Background(), batch))
	require.Len(t, pub.messages, 1)

	msg := pub.messages[0]
	assert.Equal(t, "robots/r1/bt", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "root/n1", got[1]["path"])
	assert.Equal(t, "RUNNING", got[1]["current"])

	require.NoError(t, m.Close())
	assert.True(t, pub.disconnected)
}

func TestMQTT_PublishError(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{token: func() mqtt.Token { return completedToken(errBackend) }}
	err := NewMQTT(pub, "t").WriteBatch(context.Background(), []bt.Transition{transition(0)})
	require.ErrorIs(t, err, errBackend)
}

func TestMQTT_Timeout(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{token: func() mqtt.Token { return &fakeToken{done: make(chan struct{})} }}
	m := NewMQTT(pub, "t", WithPublishTimeout(10*time.Millisecond))

	err := m.WriteBatch(context.Background(), []bt.Transition{transition(0)})
	require.ErrorIs(t, err, ErrPublishTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m = NewMQTT(pub, "t", WithPublishTimeout(time.Hour))
	err = m.WriteBatch(ctx, []bt.Transition{transition(0)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMQTT_ThroughBuffered(t *testing.T) {
	t.Parallel()

	pub := new(fakePublisher)
	b := NewBuffered(NewMQTT(pub, "t"), WithBatchSize(2), WithLogger(quietLogger()))
	for i := range 5 {
		b.Observe(transition(i))
	}
	require.NoError(t, b.Close())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.messages, 3)
	assert.True(t, pub.disconnected)
}
