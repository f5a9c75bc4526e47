package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

type mockCreator struct {
	params *openapi.CreateMessageParams
	err    error
	block  chan struct{}
}

func (m *mockCreator) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	if m.block != nil {
		<-m.block
	}
	m.params = p
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, m.err
}

func TestTwilioNotifier_SendsWhatsApp(t *testing.T) {
	api := &mockCreator{}
	n := &TwilioNotifier{api: api, from: "+14155238886", logger: discardLogger}
	if err := n.Notify(context.Background(), Notification{To: "5551234567", Body: "hello"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if *api.params.To != "whatsapp:5551234567" || *api.params.From != "whatsapp:+14155238886" || *api.params.Body != "hello" {
		t.Fatalf("unexpected params to=%s from=%s body=%s", *api.params.To, *api.params.From, *api.params.Body)
	}
}

func TestTwilioNotifier_Errors(t *testing.T) {
	api := &mockCreator{err: errors.New("20003 auth")}
	n := &TwilioNotifier{api: api, from: "+1"}
	if err := n.Notify(context.Background(), Notification{To: "1", Body: "x"}); err == nil {
		t.Fatalf("expected api error")
	}
	if err := n.Notify(context.Background(), Notification{Body: "x"}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	if _, err := NewTwilioNotifier("", "", "", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTwilioNotifier_RespectsContext(t *testing.T) {
	api := &mockCreator{block: make(chan struct{})}
	defer close(api.block)
	n := &TwilioNotifier{api: api, from: "+1"}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Notify(ctx, Notification{To: "1", Body: "x"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

type mockToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *mockToken {
	ch := make(chan struct{})
	close(ch)
	return &mockToken{err: err, done: ch}
}

func (t *mockToken) Wait() bool                       { <-t.done; return true }
func (t *mockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{}            { return t.done }
func (t *mockToken) Error() error                     { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type mockPublisher struct {
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.msgs = append(m.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken(m.err)
}

func TestMQTTNotifier_PublishesJSON(t *testing.T) {
	pub := &mockPublisher{}
	n := &MQTTNotifier{pub: pub, topic: "studybuddy/alerts", logger: discardLogger}
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	err := n.Notify(context.Background(), Notification{To: "5551234567", Name: "Alice", Body: "msg", Kind: distraction.Dozing, At: at})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	m := pub.msgs[0]
	if m.topic != "studybuddy/alerts/5551234567" || m.qos != 1 {
		t.Fatalf("topic=%q qos=%d", m.topic, m.qos)
	}
	var p mqttPayload
	if err := json.Unmarshal(m.payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Student != "Alice" || p.Kind != "dozing" || p.Timestamp != "2024-05-01T09:30:00Z" {
		t.Fatalf("payload=%+v", p)
	}
	if n.Published() != 1 {
		t.Fatalf("published counter=%d", n.Published())
	}
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not authorized")}
	n := &MQTTNotifier{pub: pub, topic: "t"}
	if err := n.Notify(context.Background(), Notification{Name: "x"}); err == nil {
		t.Fatalf("expected publish error")
	}
	if n.Errors() != 1 {
		t.Fatalf("errors=%d", n.Errors())
	}
	if pub.msgs[0].topic != "t/x" {
		t.Fatalf("topic fallback to name, got %q", pub.msgs[0].topic)
	}
}
