package chathub_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"omechat/backend/internal/chathub"
	"omechat/backend/internal/metrics"
	"omechat/backend/internal/models"
)

func createTestHub(t *testing.T, opts ...chathub.ManagerOption) *chathub.ManagerService {
	t.Helper()
	return chathub.NewManagerService(chathub.NewMatcher(), opts...)
}

func connectAll(t *testing.T, hub *chathub.ManagerService, ids ...string) []*MockClient {
	t.Helper()
	out := make([]*MockClient, 0, len(ids))
	for _, id := range ids {
		c := newMockClient(id)
		require.NoError(t, hub.Connect(c))
		out = append(out, c)
	}
	return out
}

// pair connects a and b and matches them with b as initiator.
func pair(t *testing.T, hub *chathub.ManagerService) (a, b *MockClient, connectionID string) {
	t.Helper()
	clients := connectAll(t, hub, "a", "b")
	a, b = clients[0], clients[1]
	hub.HandleMessage(a, []byte(`{"type":"JOIN_QUEUE"}`))
	hub.HandleMessage(b, []byte(`{"type":"JOIN_QUEUE"}`))
	found := b.MessagesOfType(models.TypeMatchFound)
	require.Len(t, found, 1)
	return a, b, found[0]["connection_id"].(string)
}

func TestManager_FullSessionScenario(t *testing.T) {
	hub := createTestHub(t)
	clients := connectAll(t, hub, "a", "b")
	a, b := clients[0], clients[1]

	hub.HandleMessage(a, []byte(`{"type":"JOIN_QUEUE"}`))
	pos := a.MessagesOfType(models.TypeQueuePosition)
	require.Len(t, pos, 1)
	assert.EqualValues(t, 1, pos[0]["position"])
	assert.EqualValues(t, 1, pos[0]["online_count"])

	hub.HandleMessage(b, []byte(`{"type":"JOIN_QUEUE"}`))
	bFound := b.MessagesOfType(models.TypeMatchFound)
	aFound := a.MessagesOfType(models.TypeMatchFound)
	require.Len(t, bFound, 1)
	require.Len(t, aFound, 1)
	assert.Equal(t, true, bFound[0]["is_initiator"])
	assert.Equal(t, false, aFound[0]["is_initiator"])
	assert.Equal(t, bFound[0]["connection_id"], aFound[0]["connection_id"])
	connID := bFound[0]["connection_id"].(string)

	offer := []byte(`{"type":"OFFER","connection_id":"` + connID + `","sdp":"v=0 offer"}`)
	hub.HandleMessage(b, offer)
	got := a.Frames()
	assert.Equal(t, offer, got[len(got)-1], "signaling frames are forwarded unchanged")

	answer := []byte(`{"type":"ANSWER","connection_id":"` + connID + `","sdp":"v=0 answer"}`)
	hub.HandleMessage(a, answer)
	got = b.Frames()
	assert.Equal(t, answer, got[len(got)-1])

	ice := []byte(`{"type":"ICE_CANDIDATE","connection_id":"` + connID + `","candidate":{"candidate":"candidate:1 1 UDP 1 1.2.3.4 5 typ host","sdpMid":"0"}}`)
	hub.HandleMessage(b, ice)
	got = a.Frames()
	assert.Equal(t, ice, got[len(got)-1])

	hub.HandleMessage(a, []byte(`{"type":"CHAT_MESSAGE","text":"hi there","connection_id":"`+connID+`"}`))
	chat := b.MessagesOfType(models.TypeChatMessage)
	require.Len(t, chat, 1)
	assert.Equal(t, map[string]any{"type": "CHAT_MESSAGE", "text": "hi there"}, chat[0])

	hub.HandleMessage(b, []byte(`{"type":"NEXT"}`))
	aEnded := a.MessagesOfType(models.TypeMatchEnded)
	bEnded := b.MessagesOfType(models.TypeMatchEnded)
	require.Len(t, aEnded, 1)
	require.Len(t, bEnded, 1)
	assert.Equal(t, "NEXTED", aEnded[0]["reason"])
	assert.Equal(t, "NEXTED", bEnded[0]["reason"])

	before := len(b.Frames())
	hub.HandleMessage(a, []byte(`{"type":"OFFER","sdp":"late"}`))
	assert.Len(t, b.Frames(), before, "no partner, frame dropped")
	assert.Zero(t, hub.Stats().ActiveConnections)
}

func TestManager_NextWithoutConnectionStillAcknowledges(t *testing.T) {
	hub := createTestHub(t)
	a := connectAll(t, hub, "a")[0]

	hub.HandleMessage(a, []byte(`{"type":"NEXT"}`))
	ended := a.MessagesOfType(models.TypeMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "NEXTED", ended[0]["reason"])
}

func TestManager_StaleConnectionIDIsDropped(t *testing.T) {
	hub := createTestHub(t)
	a, b, _ := pair(t, hub)
	before := len(a.Frames())

	hub.HandleMessage(b, []byte(`{"type":"OFFER","connection_id":"previous-match","sdp":"x"}`))
	assert.Len(t, a.Frames(), before)
}

func TestManager_RelaysPayloadsOfAnyShape(t *testing.T) {
	hub := createTestHub(t)
	a, b, connID := pair(t, hub)

	offer := []byte(`{"type":"OFFER","connection_id":"` + connID + `","sdp":{"type":"offer","sdp":"v=0"}}`)
	hub.HandleMessage(b, offer)
	got := a.Frames()
	require.NotEmpty(t, got)
	assert.Equal(t, offer, got[len(got)-1], "description objects are forwarded unchanged")

	hub.HandleMessage(b, []byte(`{"type":"CHAT_MESSAGE","connection_id":"`+connID+`","text":42}`))
	chat := a.MessagesOfType(models.TypeChatMessage)
	require.Len(t, chat, 1)
	assert.EqualValues(t, 42, chat[0]["text"])

	hub.HandleMessage(b, []byte(`{"type":"ANSWER","connection_id":{"id":1},"sdp":"v=0"}`))
	assert.Len(t, a.MessagesOfType(models.TypeAnswer), 1, "a non-string connection id is treated as absent")
}

func TestManager_MalformedAndUnknownFramesAreIgnored(t *testing.T) {
	hub := createTestHub(t)
	a, b, _ := pair(t, hub)
	aBefore, bBefore := len(a.Frames()), len(b.Frames())

	hub.HandleMessage(a, []byte(`not json`))
	hub.HandleMessage(a, []byte(`{"sdp":"no type"}`))
	hub.HandleMessage(a, []byte(`{"type":"SHOUT"}`))

	assert.Len(t, a.Frames(), aBefore)
	assert.Len(t, b.Frames(), bBefore)
	assert.Equal(t, 1, hub.Stats().ActiveConnections)
}

func TestManager_DisconnectNotifiesPartnerAndRecords(t *testing.T) {
	pool, err := chathub.NewPersistPool(2)
	require.NoError(t, err)
	defer pool.Release()

	rec := newMockRecorder()
	rec.On("RecordMatchStart", mock.AnythingOfType("*models.Connection")).Return(nil).Once()
	rec.On("RecordMatchEnd", mock.MatchedBy(func(c *models.Connection) bool {
		return c.EndedReason != nil && *c.EndedReason == models.EndedDisconnected && c.EndedAt != nil
	})).Return(nil).Once()

	hub := createTestHub(t, chathub.WithRecorder(rec, pool))
	a, b, connID := pair(t, hub)

	hub.Disconnect(b)
	ended := a.MessagesOfType(models.TypeMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "DISCONNECTED", ended[0]["reason"])

	hub.Disconnect(b)
	assert.Len(t, a.MessagesOfType(models.TypeMatchEnded), 1, "second disconnect is a no-op")

	waitCalls(t, rec, 2)
	rec.AssertExpectations(t)
	for _, call := range rec.Calls {
		assert.Equal(t, connID, call.Arguments.Get(0).(*models.Connection).ID)
	}

	_, ok := hub.Matcher.Lookup("b")
	assert.False(t, ok)
}

func TestManager_RecorderFailureDoesNotAffectMatching(t *testing.T) {
	pool, err := chathub.NewPersistPool(1)
	require.NoError(t, err)
	defer pool.Release()

	rec := newMockRecorder()
	rec.On("RecordMatchStart", mock.Anything).Return(errors.New("db down"))

	hub := createTestHub(t, chathub.WithRecorder(rec, pool))
	_, _, connID := pair(t, hub)
	waitCalls(t, rec, 1)

	assert.NotEmpty(t, connID)
	assert.Equal(t, 1, hub.Stats().ActiveConnections)
}

func TestManager_KickBansAndEndsMatch(t *testing.T) {
	hub := createTestHub(t)
	a, b, _ := pair(t, hub)

	assert.True(t, hub.Kick("a", "auto-ban"))

	banned := a.MessagesOfType(models.TypeBanned)
	require.Len(t, banned, 1)
	assert.Equal(t, "auto-ban", banned[0]["reason"])
	assert.True(t, a.IsClosed())

	ended := b.MessagesOfType(models.TypeMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "ERROR", ended[0]["reason"])

	assert.False(t, hub.Kick("a", "again"), "session no longer registered")
	hub.Disconnect(a)
	assert.Len(t, b.MessagesOfType(models.TypeMatchEnded), 1)
}

func TestManager_ConnectDuplicateSession(t *testing.T) {
	hub := createTestHub(t)
	connectAll(t, hub, "a")

	err := hub.Connect(newMockClient("a"))
	assert.True(t, errors.Is(err, chathub.ErrAlreadyRegistered))
}

func TestManager_OnlineCountBroadcast(t *testing.T) {
	hub := createTestHub(t)
	clients := connectAll(t, hub, "a", "idle")
	a, idle := clients[0], clients[1]

	hub.HandleMessage(a, []byte(`{"type":"JOIN_QUEUE"}`))
	updates := idle.MessagesOfType(models.TypeOnlineCountUpdate)
	require.Len(t, updates, 1)
	assert.EqualValues(t, 1, updates[0]["count"])
	assert.Empty(t, a.MessagesOfType(models.TypeOnlineCountUpdate), "the caller is excluded")

	hub.HandleMessage(a, []byte(`{"type":"LEAVE_QUEUE"}`))
	updates = idle.MessagesOfType(models.TypeOnlineCountUpdate)
	require.Len(t, updates, 2)
	assert.EqualValues(t, 0, updates[1]["count"])

	hub.HandleMessage(a, []byte(`{"type":"LEAVE_QUEUE"}`))
	assert.Len(t, idle.MessagesOfType(models.TypeOnlineCountUpdate), 2, "leaving twice changes nothing")
}

func TestManager_SendFailuresAreSwallowed(t *testing.T) {
	hub := createTestHub(t)
	a, b, connID := pair(t, hub)
	a.failSend = true

	assert.NotPanics(t, func() {
		hub.HandleMessage(b, []byte(`{"type":"OFFER","connection_id":"`+connID+`","sdp":"x"}`))
	})
	assert.Equal(t, 1, hub.Stats().ActiveConnections)
}

func TestManager_RunStatsPublisher(t *testing.T) {
	hub := createTestHub(t)
	connectAll(t, hub, "a")

	sink := new(MockStatsSink)
	published := make(chan models.OnlineStats, 4)
	sink.On("PublishStats", mock.Anything, mock.AnythingOfType("models.OnlineStats")).
		Run(func(args mock.Arguments) {
			select {
			case published <- args.Get(1).(models.OnlineStats):
			default:
			}
		}).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunStatsPublisher(ctx, sink, 10*time.Millisecond) }()

	select {
	case s := <-published:
		assert.Equal(t, 1, s.Registered)
	case <-time.After(2 * time.Second):
		t.Fatal("stats were never published")
	}

	cancel()
	assert.NoError(t, <-done)
}

func waitCalls(t *testing.T, rec *MockRecorder, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-rec.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("recorder call %d never happened", i+1)
		}
	}
}

func TestManager_RelayCounters(t *testing.T) {
	hub := createTestHub(t)
	a, b, connID := pair(t, hub)

	delivered := metrics.RelayedMessagesTotal.WithLabelValues("offer")
	stale := metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropStale)
	deliveredBefore, staleBefore := testutil.ToFloat64(delivered), testutil.ToFloat64(stale)

	hub.HandleMessage(b, []byte(`{"type":"OFFER","connection_id":"`+connID+`","sdp":"x"}`))
	hub.HandleMessage(b, []byte(`{"type":"OFFER","connection_id":"old","sdp":"x"}`))

	assert.Equal(t, deliveredBefore+1, testutil.ToFloat64(delivered))
	assert.Equal(t, staleBefore+1, testutil.ToFloat64(stale))
	assert.Len(t, a.MessagesOfType(models.TypeOffer), 1)
}

// heldClient blocks MATCH_FOUND frames until release is closed.
type heldClient struct {
	*MockClient
	release chan struct{}
}

func (c *heldClient) Send(frame []byte) error {
	if bytes.Contains(frame, []byte(`"MATCH_FOUND"`)) {
		<-c.release
	}
	return c.MockClient.Send(frame)
}

func frameTypes(t *testing.T, c *MockClient) []string {
	t.Helper()
	var types []string
	for _, f := range c.Frames() {
		var m struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f, &m))
		types = append(types, m.Type)
	}
	return types
}

func TestManager_MatchEndedNeverOvertakesMatchFound(t *testing.T) {
	hub := createTestHub(t)
	waiting := connectAll(t, hub, "a")[0]
	hub.HandleMessage(waiting, []byte(`{"type":"JOIN_QUEUE"}`))

	initiator := &heldClient{MockClient: newMockClient("b"), release: make(chan struct{})}
	require.NoError(t, hub.Connect(initiator))

	joined := make(chan struct{})
	go func() {
		hub.HandleMessage(initiator, []byte(`{"type":"JOIN_QUEUE"}`))
		close(joined)
	}()
	require.Eventually(t, func() bool {
		_, ok := hub.Matcher.Connection("a")
		return ok
	}, 2*time.Second, time.Millisecond)

	// the waiting side drops while the initiator is still being told about the match
	disconnected := make(chan struct{})
	go func() {
		hub.Disconnect(waiting)
		close(disconnected)
	}()
	require.Eventually(t, func() bool {
		_, ok := hub.Matcher.Lookup("a")
		return !ok
	}, 2*time.Second, time.Millisecond)

	select {
	case <-disconnected:
		t.Fatal("partner notification finished before the match was announced")
	case <-time.After(50 * time.Millisecond):
	}

	close(initiator.release)
	<-joined
	<-disconnected

	types := frameTypes(t, initiator.MockClient)
	found := indexOf(types, string(models.TypeMatchFound))
	ended := indexOf(types, string(models.TypeMatchEnded))
	require.NotEqual(t, -1, found, types)
	require.NotEqual(t, -1, ended, types)
	assert.Less(t, found, ended, types)
}

func indexOf(items []string, want string) int {
	for i, item := range items {
		if item == want {
			return i
		}
	}
	return -1
}
