package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

var controllerResponseRaw = []byte{0xB6, 0x6B, 0xAA, 0xDA, 0x0A, 0x02, 0x00, 0x04, 0x00, 0x00, 0x13, 0x00, 0x00, 0x02, 0x01, 0x1C, 0x0D}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testMessage(t *testing.T, raw []byte) message.Message {
	t.Helper()
	tg, err := telegram.NewAt(raw, base)
	if err != nil {
		t.Fatal(err)
	}
	m, err := message.DefaultRegistry().Specialize(tg)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(testMessage(t, controllerResponseRaw))
	if e.ID != "AADA" || e.Type != "RESPONSE" || e.Kind != "ControllerResponse" {
		t.Errorf("event header: %+v", e)
	}
	if !e.Timestamp.Equal(base) {
		t.Errorf("timestamp: got %v", e.Timestamp)
	}
	if !strings.HasPrefix(e.Raw, "B6 6B AA DA") || !strings.HasPrefix(e.Text, "Controller Response") {
		t.Errorf("event body: %+v", e)
	}
}

type published struct {
	subject string
	data    []byte
}

type fakeNATS struct {
	msgs    []published
	err     error
	flushed bool
	closed  bool
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subj, data})
	return nil
}

func (f *fakeNATS) FlushWithContext(context.Context) error { f.flushed = true; return nil }
func (f *fakeNATS) Close()                                 { f.closed = true }

func TestNATSPublish(t *testing.T) {
	conn := &fakeNATS{}
	n := newNATS(conn, "bus")
	e := NewEvent(testMessage(t, controllerResponseRaw))

	if err := n.Publish(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if len(conn.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(conn.msgs))
	}
	if conn.msgs[0].subject != "bus.ControllerResponse" || conn.msgs[1].subject != "bus.all" {
		t.Errorf("subjects: %q, %q", conn.msgs[0].subject, conn.msgs[1].subject)
	}
	var got Event
	if err := json.Unmarshal(conn.msgs[0].data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "AADA" {
		t.Errorf("payload id: got %q", got.ID)
	}

	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if !conn.flushed || !conn.closed {
		t.Error("Close should flush and close")
	}
}

func TestNATSSubjectToken(t *testing.T) {
	n := newNATS(&fakeNATS{}, "rs485")
	if got := n.Subject("a.b c"); got != "rs485.a_b_c" {
		t.Errorf("Subject() = %q", got)
	}
}

type redisCall struct {
	op   string
	key  string
	args []interface{}
}

type fakeRedis struct {
	calls   []redisCall
	hsetErr error
	closed  bool
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.calls = append(f.calls, redisCall{"hset", key, values})
	return redis.NewIntResult(int64(len(values)/2), f.hsetErr)
}

func (f *fakeRedis) HIncrBy(_ context.Context, key, field string, incr int64) *redis.IntCmd {
	f.calls = append(f.calls, redisCall{"hincrby", key, []interface{}{field, incr}})
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.calls = append(f.calls, redisCall{"expire", key, []interface{}{ttl}})
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, msg interface{}) *redis.IntCmd {
	f.calls = append(f.calls, redisCall{"publish", channel, []interface{}{msg}})
	return redis.NewIntResult(0, nil)
}

func (f *fakeRedis) Close() error { f.closed = true; return nil }

func TestRedisPublish(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		ops  []string
	}{
		{"with ttl", 5 * time.Minute, []string{"hset", "hincrby", "expire", "publish"}},
		{"no ttl", 0, []string{"hset", "hincrby", "publish"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeRedis{}
			r := newRedis(client, "rs485", tt.ttl)
			if err := r.Publish(context.Background(), NewEvent(testMessage(t, controllerResponseRaw))); err != nil {
				t.Fatal(err)
			}
			if len(client.calls) != len(tt.ops) {
				t.Fatalf("calls: %+v", client.calls)
			}
			for i, op := range tt.ops {
				if client.calls[i].op != op {
					t.Errorf("call %d: got %s, want %s", i, client.calls[i].op, op)
				}
			}
			if client.calls[0].key != "rs485:shadow:AADA" {
				t.Errorf("shadow key: got %q", client.calls[0].key)
			}
			if last := client.calls[len(client.calls)-1]; last.key != "rs485:telegrams" {
				t.Errorf("channel: got %q", last.key)
			}
		})
	}
}

func TestRedisPublishError(t *testing.T) {
	client := &fakeRedis{hsetErr: errors.New("READONLY")}
	r := newRedis(client, "rs485", time.Minute)
	err := r.Publish(context.Background(), NewEvent(testMessage(t, controllerResponseRaw)))
	if err == nil || !strings.Contains(err.Error(), "READONLY") {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("should stop after the failed HSET, got %d calls", len(client.calls))
	}
	r.Close()
	if !client.closed {
		t.Error("Close should close the client")
	}
}

func TestFanoutLogsFailuresOnce(t *testing.T) {
	logger, err := logging.NewLogger(logging.LogLevelInfo, "")
	if err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	logger.SetOutput(&stdout, &stderr)

	broken := &fakeNATS{err: errors.New("connection closed")}
	ok := &fakeNATS{}
	f := NewFanout(logger)
	f.Add("broken", newNATS(broken, "rs485"))
	f.Add("ok", newNATS(ok, "rs485"))

	m := testMessage(t, controllerResponseRaw)
	for i := 0; i < 3; i++ {
		if err := f.Send(context.Background(), m); err == nil || !strings.Contains(err.Error(), "broken") {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if n := strings.Count(stderr.String(), "publish to broken"); n != 1 {
		t.Errorf("failure logged %d times, want 1:\n%s", n, stderr.String())
	}

	broken.err = nil
	if err := f.Send(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	sent, failed := f.Counts()
	if sent != 5 || failed != 3 {
		t.Errorf("Counts() = %d, %d", sent, failed)
	}
	if len(ok.msgs) != 8 {
		t.Errorf("healthy target got %d messages, want 8", len(ok.msgs))
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if !broken.closed || !ok.closed || f.Len() != 0 {
		t.Error("Close should close every target")
	}
}

func TestFanoutEmpty(t *testing.T) {
	f := NewFanout(nil)
	if err := f.Send(context.Background(), testMessage(t, controllerResponseRaw)); err != nil {
		t.Fatal(err)
	}
}

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	all := dialHub(t, srv, "")
	filtered := dialHub(t, srv, "?id=0x5AAA")
	waitClients(t, hub, 2)

	other, err := telegram.Encode(telegram.Request, 0x11, 0x22, []byte{0x01})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	hub.Publish(ctx, NewEvent(testMessage(t, other)))
	hub.Publish(ctx, NewEvent(testMessage(t, controllerResponseRaw)))

	all.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ids []string
	for i := 0; i < 2; i++ {
		var e Event
		if err := all.ReadJSON(&e); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "1122,AADA" {
		t.Errorf("broadcast ids: %v", ids)
	}

	filtered.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := filtered.ReadMessage(); err == nil {
		t.Error("filtered client should not receive other ids")
	}

	latest := hub.Latest()
	if len(latest) != 2 || latest[0].ID != "1122" || latest[1].ID != "AADA" {
		t.Errorf("Latest() = %+v", latest)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	conn := dialHub(t, srv, "")
	waitClients(t, hub, 1)

	hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want normal closure", err)
	}
	if hub.Clients() != 0 {
		t.Errorf("clients after Close: %d", hub.Clients())
	}
}

func TestRouterHealthAndLatest(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(context.Background(), NewEvent(testMessage(t, controllerResponseRaw)))
	router := NewRouter(hub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"clients":0`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/latest", nil))
	var events []Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != "ControllerResponse" {
		t.Errorf("latest: %+v", events)
	}
}

func TestOpenListen(t *testing.T) {
	f, srv, err := Open(context.Background(), config.PublishConfig{Listen: "127.0.0.1:0"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if srv == nil || f.Len() != 1 {
		t.Fatalf("expected only the websocket target, got %d", f.Len())
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status: %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestOpenNothing(t *testing.T) {
	f, srv, err := Open(context.Background(), config.PublishConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if srv != nil || f.Len() != 0 {
		t.Error("empty config should open nothing")
	}
}
