package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/domain"
	"github.com/coursehub/liveclass/internal/store"
)

// Membership is the room membership authority: it decides who may
// observe or post into which room, and owns room creation.
type Membership struct {
	rooms  store.RoomStore
	reg    *Registry
	fanout Fanout
}

func NewMembership(rooms store.RoomStore, reg *Registry, fanout Fanout) *Membership {
	return &Membership{rooms: rooms, reg: reg, fanout: fanout}
}

// Join binds the connection to the room's fanout scope. Non-participants
// are admitted only to broadcast rooms.
func (m *Membership) Join(ctx context.Context, identity domain.Identity, connID string, roomID domain.RoomID) (*domain.Room, error) {
	room, err := m.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	_, isMember := room.Participant(identity.ID)
	if !isMember && room.Kind != domain.RoomBroadcast {
		return nil, domain.ErrAccessDenied
	}

	m.reg.BindRoom(connID, roomID)

	if isMember {
		if err := m.rooms.TouchLastSeen(ctx, roomID, identity.ID, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("module", "app.membership").
				Str("room", string(roomID)).Msg("touch last seen")
		}
	}

	m.fanout.ToRoom(roomID, domain.MemberEvent{
		Type:   domain.EvMemberJoined,
		RoomID: roomID,
		Member: identity,
	})

	log.Info().Str("module", "app.membership").
		Str("identity", string(identity.ID)).
		Str("room", string(roomID)).
		Msg("joined room")
	return room, nil
}

// Leave unbinds the connection; leaving a room you never joined is fine.
func (m *Membership) Leave(identity domain.Identity, connID string, roomID domain.RoomID) {
	m.reg.UnbindRoom(connID, roomID)
	m.fanout.ToRoom(roomID, domain.MemberEvent{
		Type:   domain.EvMemberLeft,
		RoomID: roomID,
		Member: identity,
	})
}

// CreateDirect returns the existing direct room for the pair if there is
// one, in either argument order; repeated "start chat" actions from both
// sides must converge on a single room.
func (m *Membership) CreateDirect(ctx context.Context, a domain.Identity, b domain.IdentityID) (*domain.Room, error) {
	if b == "" || a.ID == b {
		return nil, domain.ErrValidation
	}
	pairKey := domain.DirectPairKey(a.ID, b)

	if room, err := m.rooms.FindDirect(ctx, pairKey); err == nil {
		return room, nil
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	room := &domain.Room{
		ID:             domain.RoomID(uuid.NewString()),
		Kind:           domain.RoomDirect,
		PairKey:        pairKey,
		Posting:        domain.PostingEveryone,
		LastActivityAt: now,
		Participants: []domain.Participant{
			{IdentityID: a.ID, Role: domain.RoleMember, LastSeenAt: now},
			{IdentityID: b, Role: domain.RoleMember, LastSeenAt: now},
		},
	}
	if err := m.rooms.Create(ctx, room); err != nil {
		// A concurrent CreateDirect for the same pair may have won.
		if existing, ferr := m.rooms.FindDirect(ctx, pairKey); ferr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	log.Info().Str("module", "app.membership").
		Str("room", string(room.ID)).Str("pair", pairKey).
		Msg("created direct room")
	return room, nil
}

// CreateGroup builds a group room with the creator as admin.
func (m *Membership) CreateGroup(ctx context.Context, creator domain.Identity, name string, members []domain.IdentityID) (*domain.Room, error) {
	if name == "" {
		return nil, domain.ErrValidation
	}
	now := time.Now().UTC()
	room := &domain.Room{
		ID:             domain.RoomID(uuid.NewString()),
		Kind:           domain.RoomGroup,
		Name:           name,
		Posting:        domain.PostingEveryone,
		LastActivityAt: now,
		Participants: []domain.Participant{
			{IdentityID: creator.ID, Role: domain.RoleAdmin, LastSeenAt: now},
		},
	}
	for _, id := range members {
		if id == creator.ID {
			continue
		}
		room.Participants = append(room.Participants, domain.Participant{
			IdentityID: id, Role: domain.RoleMember, LastSeenAt: now,
		})
	}
	if err := m.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return room, nil
}

// CreateCourseRoom builds the course-wide room; participants may be
// added later as enrollment changes.
func (m *Membership) CreateCourseRoom(ctx context.Context, courseID, name string, posting domain.PostingPolicy) (*domain.Room, error) {
	if courseID == "" || name == "" {
		return nil, domain.ErrValidation
	}
	if posting == "" {
		posting = domain.PostingEveryone
	}
	now := time.Now().UTC()
	room := &domain.Room{
		ID:             domain.RoomID(uuid.NewString()),
		Kind:           domain.RoomCourse,
		Name:           name,
		CourseID:       courseID,
		Posting:        posting,
		LastActivityAt: now,
	}
	if err := m.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return room, nil
}

// AddParticipant enrolls an identity into a room (course enrollment,
// group invite). Idempotent.
func (m *Membership) AddParticipant(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, role domain.IdentityRole) error {
	if _, err := m.rooms.Get(ctx, roomID); err != nil {
		return err
	}
	if role == "" {
		role = domain.RoleMember
	}
	return m.rooms.AddParticipant(ctx, &domain.Participant{
		RoomID:     roomID,
		IdentityID: id,
		Role:       role,
		LastSeenAt: time.Now().UTC(),
	})
}

// Archive closes a room to new posts; history stays readable.
func (m *Membership) Archive(ctx context.Context, roomID domain.RoomID) error {
	if err := m.rooms.Archive(ctx, roomID); err != nil {
		return err
	}
	log.Info().Str("module", "app.membership").
		Str("room", string(roomID)).
		Msg("room archived")
	return nil
}

// AuthorizePost checks membership and the room's posting policy before
// any message is appended. Broadcast rooms accept posts from
// non-members, still subject to the posting policy by platform role.
func (m *Membership) AuthorizePost(room *domain.Room, identity domain.Identity) error {
	if room.Archived {
		return domain.ErrForbidden
	}
	p, isMember := room.Participant(identity.ID)
	if !isMember && room.Kind != domain.RoomBroadcast {
		return domain.ErrAccessDenied
	}
	role := identity.Role
	if isMember {
		role = p.Role
	}
	if !room.CanPost(role) {
		return domain.ErrForbidden
	}
	return nil
}
