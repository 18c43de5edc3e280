package app

import (
	"context"
	"sync"
	"time"

	"github.com/coursehub/liveclass/internal/domain"
)

// In-memory doubles for the persistence collaborator, mirroring its
// per-document atomicity and idempotence guarantees.

type fanoutEvent struct {
	scope string
	key   string
	v     any
}

type fakeFanout struct {
	mu     sync.Mutex
	events []fanoutEvent
}

func (f *fakeFanout) ToRoom(roomID domain.RoomID, v any) {
	f.record("room", string(roomID), v)
}
func (f *fakeFanout) ToIdentity(id domain.IdentityID, v any) {
	f.record("identity", string(id), v)
}
func (f *fakeFanout) All(v any) {
	f.record("all", "", v)
}
func (f *fakeFanout) record(scope, key string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fanoutEvent{scope: scope, key: key, v: v})
}
func (f *fakeFanout) byScope(scope string) []fanoutEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fanoutEvent
	for _, e := range f.events {
		if e.scope == scope {
			out = append(out, e)
		}
	}
	return out
}

type memRoomStore struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*domain.Room
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (s *memRoomStore) Create(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range room.Participants {
		room.Participants[i].RoomID = room.ID
	}
	cp := *room
	s.rooms[room.ID] = &cp
	return nil
}

func (s *memRoomStore) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *room
	return &cp, nil
}

func (s *memRoomStore) FindDirect(_ context.Context, pairKey string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Kind == domain.RoomDirect && room.PairKey == pairKey {
			cp := *room
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memRoomStore) AddParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[p.RoomID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, existing := range room.Participants {
		if existing.IdentityID == p.IdentityID {
			return nil
		}
	}
	room.Participants = append(room.Participants, *p)
	return nil
}

func (s *memRoomStore) TouchLastSeen(_ context.Context, roomID domain.RoomID, id domain.IdentityID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		for i := range room.Participants {
			if room.Participants[i].IdentityID == id {
				room.Participants[i].LastSeenAt = at
			}
		}
	}
	return nil
}

func (s *memRoomStore) Archive(_ context.Context, roomID domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrNotFound
	}
	room.Archived = true
	return nil
}

type receiptKey struct {
	msg  domain.MessageID
	id   domain.IdentityID
	kind domain.ReceiptKind
}

type pairKey struct {
	msg domain.MessageID
	id  domain.IdentityID
}

type memMessageStore struct {
	mu        sync.Mutex
	messages  []*domain.Message
	receipts  map[receiptKey]time.Time
	reactions map[domain.MessageID][]domain.Reaction
	stars     map[pairKey]bool
	deletions map[pairKey]bool
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{
		receipts:  make(map[receiptKey]time.Time),
		reactions: make(map[domain.MessageID][]domain.Reaction),
		stars:     make(map[pairKey]bool),
		deletions: make(map[pairKey]bool),
	}
}

func (s *memMessageStore) Append(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Seq = uint64(len(s.messages) + 1)
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *memMessageStore) find(id domain.MessageID) *domain.Message {
	for _, m := range s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *memMessageStore) Get(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(id)
	if m == nil {
		return nil, domain.ErrNotFound
	}
	cp := *m
	cp.Reactions = append([]domain.Reaction(nil), s.reactions[id]...)
	return &cp, nil
}

func (s *memMessageStore) ListByRoom(_ context.Context, roomID domain.RoomID, viewer domain.IdentityID, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.RoomID != roomID {
			continue
		}
		if s.deletions[pairKey{m.ID, viewer}] {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memMessageStore) IDsInRoom(_ context.Context, roomID domain.RoomID) ([]domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []domain.MessageID
	for _, m := range s.messages {
		if m.RoomID == roomID {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (s *memMessageStore) MarkReceipts(_ context.Context, kind domain.ReceiptKind, roomID domain.RoomID, id domain.IdentityID, ids []domain.MessageID, at time.Time) ([]domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[domain.MessageID]bool, len(ids))
	for _, mid := range ids {
		wanted[mid] = true
	}
	var fresh []domain.MessageID
	for _, m := range s.messages {
		if m.RoomID != roomID || m.SenderID == id {
			continue
		}
		if len(ids) > 0 && !wanted[m.ID] {
			continue
		}
		k := receiptKey{m.ID, id, kind}
		if _, dup := s.receipts[k]; dup {
			continue
		}
		s.receipts[k] = at
		fresh = append(fresh, m.ID)
		next := domain.StatusDelivered
		if kind == domain.ReceiptRead {
			next = domain.StatusRead
		}
		if next.Outranks(m.Status) {
			m.Status = next
		}
	}
	return fresh, nil
}

func (s *memMessageStore) ToggleReaction(_ context.Context, messageID domain.MessageID, id domain.IdentityID, emoji string) ([]domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.reactions[messageID]
	for i, r := range set {
		if r.IdentityID == id && r.Emoji == emoji {
			s.reactions[messageID] = append(set[:i], set[i+1:]...)
			return append([]domain.Reaction(nil), s.reactions[messageID]...), nil
		}
	}
	s.reactions[messageID] = append(set, domain.Reaction{
		MessageID: messageID, IdentityID: id, Emoji: emoji,
	})
	return append([]domain.Reaction(nil), s.reactions[messageID]...), nil
}

func (s *memMessageStore) ToggleStar(_ context.Context, messageID domain.MessageID, id domain.IdentityID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey{messageID, id}
	if s.stars[k] {
		delete(s.stars, k)
		return false, nil
	}
	s.stars[k] = true
	return true, nil
}

func (s *memMessageStore) Edit(_ context.Context, messageID domain.MessageID, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(messageID)
	if m == nil {
		return domain.ErrNotFound
	}
	m.Content = content
	m.EditedAt = &at
	return nil
}

func (s *memMessageStore) DeleteForEveryone(_ context.Context, messageID domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(messageID)
	if m == nil {
		return domain.ErrNotFound
	}
	m.Content = domain.DeletedPlaceholder
	m.Deleted = true
	return nil
}

func (s *memMessageStore) DeleteForMe(_ context.Context, messageID domain.MessageID, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletions[pairKey{messageID, id}] = true
	return nil
}

type memCallStore struct {
	mu    sync.Mutex
	calls map[domain.CallID]*domain.CallRecord
}

func newMemCallStore() *memCallStore {
	return &memCallStore{calls: make(map[domain.CallID]*domain.CallRecord)}
}

func (s *memCallStore) Create(_ context.Context, rec *domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.calls[rec.ID] = &cp
	return nil
}

func (s *memCallStore) Get(_ context.Context, id domain.CallID) (*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memCallStore) Transition(_ context.Context, id domain.CallID, to domain.CallStatus, mutate func(*domain.CallRecord)) (*domain.CallRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if !rec.Status.CanTransition(to) {
		cp := *rec
		return &cp, false, nil
	}
	rec.Status = to
	if mutate != nil {
		mutate(rec)
	}
	cp := *rec
	return &cp, true, nil
}

func (s *memCallStore) OpenCallsFor(_ context.Context, id domain.IdentityID) ([]*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.CallRecord
	for _, rec := range s.calls {
		if !rec.Party(id) || rec.Status.Terminal() {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memCallStore) HistoryFor(_ context.Context, id domain.IdentityID, limit int) ([]*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.CallRecord
	for _, rec := range s.calls {
		if rec.Party(id) {
			cp := *rec
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
