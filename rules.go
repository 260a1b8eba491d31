package dubtrack

import "strings"

// transformFunc promotes raw fields of an in-progress event into typed form.
// Promoted keys are deleted from ev.Fields so the flat copy never duplicates a
// typed field.
type transformFunc func(p *pipeline, ev *Event)

// eventRule associates a type-tag predicate with a transform. Rules are
// evaluated in table order and the first match wins; there is no fallthrough
// to a later rule for the same event.
type eventRule struct {
	match     func(eventType string) bool
	transform transformFunc
}

func exactRule(name string, t transformFunc) eventRule {
	return eventRule{
		match:     func(eventType string) bool { return eventType == name },
		transform: t,
	}
}

func containsRule(substr string, t transformFunc) eventRule {
	return eventRule{
		match:     func(eventType string) bool { return strings.Contains(eventType, substr) },
		transform: t,
	}
}

// newEventRules builds the classification table. Exact rules come before the
// containment rules so that priority is encoded in the table itself.
func newEventRules() []eventRule {
	return []eventRule{
		exactRule(EventChatMessage, transformChatMessage),
		exactRule(EventUserJoin, transformUserJoin),
		exactRule(EventUserLeave, transformUserLeave),
		exactRule(EventUserBan, transformUserBan),
		exactRule(EventPlaylistUpdate, transformPlaylistUpdate),
		exactRule(EventPlaylistDub, transformWrapUser),
		exactRule(EventQueueUpdateDub, transformWrapUser),
		exactRule(EventQueueUpdateGrabs, transformWrapUser),
		exactRule(EventDeleteChatMessage, transformWrapUser),
		exactRule(EventUserPauseQueue, transformWrapUser),
		// The hyphenated user-update family wraps a plain user; the
		// underscored user_update family carries a room membership instead.
		containsRule("user-update", transformWrapUser),
		containsRule("user_update", transformWrapMembership),
	}
}

func (ev *Event) promoteUser(key string) *User {
	obj := payloadObject(ev.Fields, key)
	if obj == nil {
		return nil
	}
	delete(ev.Fields, key)
	return newUserFromPayload(obj)
}

func transformChatMessage(p *pipeline, ev *Event) {
	ev.ChatID = payloadString(ev.Fields, "chatid")
	delete(ev.Fields, "chatid")
	ev.User = ev.promoteUser("user")
	if v, ok := ev.Fields["time"]; ok {
		ev.Time = coerceTime(v)
		delete(ev.Fields, "time")
	}
}

func transformWrapUser(p *pipeline, ev *Event) {
	ev.User = ev.promoteUser("user")
}

func transformUserJoin(p *pipeline, ev *Event) {
	ev.User = ev.promoteUser("user")
	if obj := payloadObject(ev.Fields, "roomUser"); obj != nil {
		delete(ev.Fields, "roomUser")
		ev.Member = newMembershipFromPayload(obj, p.resolveUser)
	}
}

func transformUserLeave(p *pipeline, ev *Event) {
	ev.User = ev.promoteUser("user")
	if obj := payloadObject(ev.Fields, "room"); obj != nil {
		delete(ev.Fields, "room")
		ev.Room = newRoomFromPayload(obj)
	}
}

// transformUserBan swaps the field roles on purpose: the raw user field of
// this event identifies the moderator, and kickedUser the affected user.
func transformUserBan(p *pipeline, ev *Event) {
	ev.Moderator = ev.promoteUser("user")
	ev.User = ev.promoteUser("kickedUser")
}

func transformPlaylistUpdate(p *pipeline, ev *Event) {
	if obj := payloadObject(ev.Fields, "songInfo"); obj != nil {
		delete(ev.Fields, "songInfo")
		ev.Song = newSongFromPayload(obj)
	}
}

func transformWrapMembership(p *pipeline, ev *Event) {
	if obj := payloadObject(ev.Fields, "user"); obj != nil {
		delete(ev.Fields, "user")
		ev.Member = newMembershipFromPayload(obj, p.resolveUser)
	}
}
