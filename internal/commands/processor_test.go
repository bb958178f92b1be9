package commands_test

import (
	"context"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/commands"
	"editorchat-backend/internal/database"
	"editorchat-backend/internal/keyValue"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/store"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	keyValue.Setup(zap.NewNop().Sugar(), nil, true)
	m.Run()
}

type clock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	processor *commands.Processor
	store     *store.Store
	clock     *clock
	admin     models.User
	u1        models.User
	u2        models.User
	general   models.Channel
	desk      models.Channel
}

func setup(t *testing.T, policy store.OrphanPolicy) fixture {
	t.Helper()

	sugar := zap.NewNop().Sugar()
	db, err := database.OpenSqlite(sugar, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	c := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s, err := store.New(db, store.Options{Sugar: sugar, Now: c.Now, OrphanPolicy: policy})
	if err != nil {
		t.Fatal(err)
	}

	f := fixture{
		processor: commands.New(s, keyValue.Locker{TTL: time.Second}, sugar),
		store:     s,
		clock:     c,
	}

	ctx := context.Background()
	for _, u := range []struct {
		dst  *models.User
		user models.User
	}{
		{&f.admin, models.User{Email: "admin@example.com", DisplayName: "Admin", Role: models.RoleAdmin}},
		{&f.u1, models.User{Email: "u1@example.com", DisplayName: "U1", Role: models.RoleAuthor}},
		{&f.u2, models.User{Email: "u2@example.com", DisplayName: "U2", Role: models.RoleEditor}},
	} {
		created, err := s.CreateUser(ctx, u.user)
		if err != nil {
			t.Fatal(err)
		}
		*u.dst = created
	}

	f.general, err = f.processor.CreateChannel(ctx, f.admin, models.Channel{Slug: "general", Name: "General"})
	if err != nil {
		t.Fatal(err)
	}
	f.desk, err = f.processor.CreateChannel(ctx, f.admin, models.Channel{Slug: "desk", Name: "Desk", IsPrivate: true, AllowedRoles: []string{models.RoleEditor}})
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func (f fixture) send(t *testing.T, actor models.User, conv models.ConversationRef, body string) models.Message {
	t.Helper()
	msg, err := f.processor.SendMessage(context.Background(), actor, commands.SendMessage{Conversation: conv, Body: body})
	if err != nil {
		t.Fatalf("SendMessage(%q): %v", body, err)
	}
	return msg
}

func TestEditorialFlow(t *testing.T) {
	f := setup(t, store.OrphanKeep)
	ctx := context.Background()
	general := models.ChannelConversation(f.general.ID)

	msg := f.send(t, f.u1, general, "Check this @U2")
	if len(msg.Mentions) != 1 || msg.Mentions[0] != f.u2.ID {
		t.Errorf("mentions = %v, want [%d]", msg.Mentions, f.u2.ID)
	}
	if msg.IsPinned {
		t.Error("new message is pinned")
	}

	added, reacted, err := f.processor.ToggleReaction(ctx, f.u2, msg.ID, "🔥")
	if err != nil || !added {
		t.Fatalf("ToggleReaction = %t, %v", added, err)
	}
	if len(reacted.Reactions) != 1 || reacted.Reactions[0].Emoji != "🔥" || reacted.Reactions[0].Count != 1 {
		t.Errorf("reactions = %+v", reacted.Reactions)
	}

	f.clock.Advance(5 * time.Minute)
	edited, err := f.processor.EditMessage(ctx, f.u1, msg.ID, "Check this @Admin")
	if err != nil {
		t.Fatal(err)
	}
	if edited.EditedAt == nil || !edited.EditedAt.Equal(f.clock.Now()) {
		t.Errorf("EditedAt = %v", edited.EditedAt)
	}
	if len(edited.Mentions) != 1 || edited.Mentions[0] != f.admin.ID {
		t.Errorf("mentions after edit = %v", edited.Mentions)
	}

	f.clock.Advance(11 * time.Minute)
	_, err = f.processor.EditMessage(ctx, f.u1, msg.ID, "too late")
	if !errors.Is(err, chaterr.ErrEditWindowExpired) {
		t.Errorf("late edit: got %v", err)
	}
}

func TestEditWindowBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    error
	}{
		{"Just inside", 14*time.Minute + 59*time.Second, nil},
		{"Exactly at the window", 15 * time.Minute, nil},
		{"Just outside", 15*time.Minute + time.Second, chaterr.ErrEditWindowExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, store.OrphanKeep)
			msg := f.send(t, f.u1, models.ChannelConversation(f.general.ID), "draft")

			f.clock.Advance(tc.elapsed)
			_, err := f.processor.EditMessage(context.Background(), f.u1, msg.ID, "final")
			if tc.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestConcurrentReactionToggles(t *testing.T) {
	for _, n := range []int{7, 8} {
		f := setup(t, store.OrphanKeep)
		msg := f.send(t, f.u1, models.ChannelConversation(f.general.ID), "which headline?")

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := f.processor.ToggleReaction(context.Background(), f.u2, msg.ID, "👍")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("toggle: %v", err)
			}
		}

		got, err := f.store.GetMessage(context.Background(), msg.ID, f.u2.ID)
		if err != nil {
			t.Fatal(err)
		}
		present := len(got.Reactions) == 1 && got.Reactions[0].Count == 1
		if want := n%2 == 1; present != want {
			t.Errorf("%d toggles: reaction present = %t, want %t", n, present, want)
		}
	}
}

func TestConcurrentSendsKeepOrder(t *testing.T) {
	f := setup(t, store.OrphanKeep)
	general := models.ChannelConversation(f.general.ID)

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			author := f.u1
			if i%2 == 0 {
				author = f.u2
			}
			msg, err := f.processor.SendMessage(context.Background(), author, commands.SendMessage{Conversation: general, Body: "update"})
			if err != nil {
				t.Error(err)
				return
			}
			ids <- msg.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
}

func TestPinDirectMessage(t *testing.T) {
	f := setup(t, store.OrphanKeep)
	ctx := context.Background()

	dm := models.DirectConversation(f.u1.ID, f.u2.ID)
	msg := f.send(t, f.u1, dm, "between us")

	_, err := f.processor.TogglePin(ctx, f.u2, msg.ID)
	if !errors.Is(err, chaterr.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}

	got, err := f.store.GetMessage(ctx, msg.ID, f.u1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsPinned || got.Revision != msg.Revision {
		t.Errorf("message changed: %+v", got)
	}

	pinned, err := f.processor.TogglePin(ctx, f.u2, f.send(t, f.u1, models.ChannelConversation(f.general.ID), "pin me").ID)
	if err != nil || !pinned.IsPinned {
		t.Errorf("channel pin = %+v, %v", pinned, err)
	}
}

func TestDeleteThenEdit(t *testing.T) {
	f := setup(t, store.OrphanKeep)
	ctx := context.Background()
	msg := f.send(t, f.u1, models.ChannelConversation(f.general.ID), "retracted")

	deleted, err := f.processor.DeleteMessage(ctx, f.u1, msg.ID)
	if err != nil || len(deleted) != 1 {
		t.Fatalf("DeleteMessage = %v, %v", deleted, err)
	}

	_, err = f.processor.EditMessage(ctx, f.u1, msg.ID, "again")
	if !errors.Is(err, chaterr.ErrNotFound) {
		t.Errorf("edit after delete: got %v", err)
	}
	_, _, err = f.processor.ToggleReaction(ctx, f.u2, msg.ID, "👍")
	if !errors.Is(err, chaterr.ErrNotFound) {
		t.Errorf("react after delete: got %v", err)
	}
	_, err = f.processor.DeleteMessage(ctx, f.u1, msg.ID)
	if !errors.Is(err, chaterr.ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
}

func TestPermissions(t *testing.T) {
	f := setup(t, store.OrphanKeep)
	ctx := context.Background()

	inDesk := f.send(t, f.u2, models.ChannelConversation(f.desk.ID), "embargoed")
	inGeneral := f.send(t, f.u2, models.ChannelConversation(f.general.ID), "public")
	third, err := f.store.CreateUser(ctx, models.User{Email: "u3@example.com", DisplayName: "U3"})
	if err != nil {
		t.Fatal(err)
	}
	private := f.send(t, f.u2, models.DirectConversation(f.u2.ID, third.ID), "psst")

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"Send to hidden channel", func() error {
			_, err := f.processor.SendMessage(ctx, f.u1, commands.SendMessage{Conversation: models.ChannelConversation(f.desk.ID), Body: "hi"})
			return err
		}, chaterr.ErrPermission},
		{"React in hidden channel", func() error {
			_, _, err := f.processor.ToggleReaction(ctx, f.u1, inDesk.ID, "👍")
			return err
		}, chaterr.ErrPermission},
		{"Edit someone else's message", func() error {
			_, err := f.processor.EditMessage(ctx, f.u1, inGeneral.ID, "mine now")
			return err
		}, chaterr.ErrPermission},
		{"Delete someone else's message", func() error {
			_, err := f.processor.DeleteMessage(ctx, f.u1, inGeneral.ID)
			return err
		}, chaterr.ErrPermission},
		{"Bookmark in another DM", func() error {
			_, err := f.processor.ToggleBookmark(ctx, f.u1, private.ID)
			return err
		}, chaterr.ErrPermission},
		{"Send to unknown channel", func() error {
			_, err := f.processor.SendMessage(ctx, f.u1, commands.SendMessage{Conversation: models.ChannelConversation(404), Body: "hi"})
			return err
		}, chaterr.ErrValidation},
		{"Message yourself", func() error {
			_, err := f.processor.OpenDirect(ctx, f.u1, f.u1.ID)
			return err
		}, chaterr.ErrValidation},
		{"Create channel as editor", func() error {
			_, err := f.processor.CreateChannel(ctx, f.u2, models.Channel{Slug: "ops", Name: "Ops"})
			return err
		}, chaterr.ErrPermission},
		{"Bad channel slug", func() error {
			_, err := f.processor.CreateChannel(ctx, f.admin, models.Channel{Slug: "Bad Slug", Name: "Ops"})
			return err
		}, chaterr.ErrValidation},
		{"Bad emoji", func() error {
			_, _, err := f.processor.ToggleReaction(ctx, f.u1, inGeneral.ID, "")
			return err
		}, chaterr.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDeleteCascade(t *testing.T) {
	f := setup(t, store.OrphanCascadeDelete)
	ctx := context.Background()
	general := models.ChannelConversation(f.general.ID)

	root := f.send(t, f.u1, general, "root")
	reply, err := f.processor.SendMessage(ctx, f.u2, commands.SendMessage{Conversation: general, Body: "reply", ParentID: root.ID})
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := f.processor.DeleteMessage(ctx, f.u1, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 || deleted[1] != reply.ID {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestOpenDirectAndMarkRead(t *testing.T) {
	f := setup(t, store.OrphanKeep)
	ctx := context.Background()

	conv, err := f.processor.OpenDirect(ctx, f.u2, f.u1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if conv != models.DirectConversation(f.u1.ID, f.u2.ID) {
		t.Errorf("OpenDirect = %v", conv)
	}

	msg := f.send(t, f.u1, conv, "hello")
	if err := f.processor.MarkRead(ctx, f.u2, conv, msg.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.processor.MarkRead(ctx, f.u2, conv, 0); !errors.Is(err, chaterr.ErrValidation) {
		t.Errorf("MarkRead(0): got %v", err)
	}
}
