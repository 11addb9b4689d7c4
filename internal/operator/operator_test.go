package operator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/telegram/sender"
	"github.com/ashbolt/coursebot/core/telegram/state"
	"github.com/ashbolt/coursebot/internal/course"
)

const operatorID int64 = 1000

type sent struct {
	to   string
	what interface{}
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeMessenger) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sent{to: to.Recipient(), what: what})
	return &tele.Message{}, nil
}

func (f *fakeMessenger) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	store := state.NewStore(state.NewMemoryBackend())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestParseFulfillment(t *testing.T) {
	f, err := ParseFulfillment([]string{"42", "https://course.example/react", "s3cret"})
	require.NoError(t, err)
	require.Equal(t, Fulfillment{ParticipantID: 42, Link: "https://course.example/react", Password: "s3cret"}, f)

	bad := [][]string{
		nil,
		{"42", "link"},
		{"42", "link", "pw", "extra"},
		{"forty-two", "link", "pw"},
		{"0", "link", "pw"},
		{"42", " ", "pw"},
	}
	for _, args := range bad {
		_, err := ParseFulfillment(args)
		require.ErrorIs(t, err, ErrMalformedCommand, "%q", args)
	}
}

func TestGateway_RejectsNonOperator(t *testing.T) {
	store := newStore(t)
	bot := &fakeMessenger{}
	ctx := context.Background()
	require.NoError(t, store.SetStage(ctx, 42, course.StageAwaitingFulfillment))

	_, err := NewGateway(bot, store, operatorID).Fulfill(ctx, 42, []string{"42", "link", "pw"})

	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, replyUnauthorized, Reply(err))
	require.Empty(t, bot.all())
	require.Equal(t, course.StageAwaitingFulfillment, store.GetStage(ctx, 42))
}

func TestGateway_MalformedHasNoSideEffects(t *testing.T) {
	store := newStore(t)
	bot := &fakeMessenger{}
	ctx := context.Background()
	require.NoError(t, store.SetStage(ctx, 42, course.StageAwaitingFulfillment))

	_, err := NewGateway(bot, store, operatorID).Fulfill(ctx, operatorID, []string{"42"})

	require.ErrorIs(t, err, ErrMalformedCommand)
	require.Equal(t, replyUsage, Reply(err))
	require.Empty(t, bot.all())
	require.Equal(t, course.StageAwaitingFulfillment, store.GetStage(ctx, 42))
}

func TestGateway_ScenarioE_DeliversAndClears(t *testing.T) {
	store := newStore(t)
	bot := &fakeMessenger{}
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, 42, func(rec *state.Record) error {
		rec.Stage = course.StageAwaitingFulfillment
		rec.ScreenshotCount = 3
		return nil
	}))

	f, err := NewGateway(bot, store, operatorID).Fulfill(ctx, operatorID,
		[]string{"42", "https://course.example/x", "pw123"})
	require.NoError(t, err)
	require.Equal(t, replySent, Reply(err))

	msgs := bot.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "42", msgs[0].to)
	require.Equal(t, "🎓 Course Link: https://course.example/x\n🔐 Password: pw123", msgs[0].what)
	require.Equal(t, f.Message(), msgs[0].what)

	require.Equal(t, state.StateIdle, store.GetStage(ctx, 42))
	require.Zero(t, store.Get(ctx, 42).ScreenshotCount)
}

func TestGateway_DeliveryFailureKeepsState(t *testing.T) {
	store := newStore(t)
	bot := &fakeMessenger{err: errors.New("chat not found")}
	ctx := context.Background()
	require.NoError(t, store.SetStage(ctx, 42, course.StageAwaitingFulfillment))

	_, err := NewGateway(bot, store, operatorID).Fulfill(ctx, operatorID, []string{"42", "l", "p"})

	require.ErrorIs(t, err, ErrDeliveryFailed)
	require.Equal(t, replyDeliveryFailed, Reply(err))
	require.Equal(t, course.StageAwaitingFulfillment, store.GetStage(ctx, 42))
}

func TestFormatNotification(t *testing.T) {
	p := course.Participant{ID: 42, FirstName: "Asha", LastName: "Rao", Username: "asha"}
	got := FormatNotification(p, course.Action{Kind: course.ActionOperatorMessage, Text: "User shared phone number", Phone: "+91999"})
	require.Equal(t, "👤 User Action: User shared phone number\n"+
		"🆔 ID: 42\n"+
		"👤 Name: Asha Rao\n"+
		"📧 Username: @asha\n"+
		"📱 Phone: +91999\n", got)

	anon := FormatNotification(course.Participant{ID: 7, FirstName: "Ravi"}, course.Action{Text: "x"})
	require.Contains(t, anon, "📧 Username: @N/A\n")
	require.NotContains(t, anon, "📱 Phone")
}

func TestNotifier_QueuesTextAndPhoto(t *testing.T) {
	bot := &fakeMessenger{}
	queue := sender.NewDispatcher(sender.Options{Name: "operator", Workers: 1})
	n := NewNotifier(bot, operatorID, queue)
	p := course.Participant{ID: 42, FirstName: "Asha"}

	n.Notify(context.Background(), p, course.Action{Kind: course.ActionOperatorMessage, Text: "User chose 'Namaste React' (₹29)"})
	n.Notify(context.Background(), p, course.Action{Kind: course.ActionOperatorPhoto, Text: "🧾 Payment screenshot", Photo: "file-9"})
	queue.Close()

	msgs := bot.all()
	require.Len(t, msgs, 2)
	var photo *tele.Photo
	for _, m := range msgs {
		require.Equal(t, "1000", m.to)
		if ph, ok := m.what.(*tele.Photo); ok {
			photo = ph
		}
	}
	require.NotNil(t, photo)
	require.Equal(t, "file-9", photo.FileID)
	require.Contains(t, photo.Caption, "🧾 Payment screenshot")
}

func TestNotifier_FailureIsNotRetried(t *testing.T) {
	bot := &fakeMessenger{err: errors.New("bot was blocked")}
	queue := sender.NewDispatcher(sender.Options{Name: "operator", Workers: 1})
	n := NewNotifier(bot, operatorID, queue)

	n.Notify(context.Background(), course.Participant{ID: 1}, course.Action{Text: "x"})
	queue.Close()

	require.Equal(t, uint64(1), queue.ErrorCount())
}

func TestNotifier_ClosedQueueDropsSilently(t *testing.T) {
	bot := &fakeMessenger{}
	queue := sender.NewDispatcher(sender.Options{})
	queue.Close()

	NewNotifier(bot, operatorID, queue).Notify(context.Background(), course.Participant{ID: 1}, course.Action{Text: "x"})
	require.Empty(t, bot.all())
}
