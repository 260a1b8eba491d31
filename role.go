package dubtrack

// Role types as the service names them.
const (
	RoleCoOwner    = "co-owner"
	RoleManager    = "mod-manager"
	RoleMod        = "mod"
	RoleVIP        = "vip"
	RoleResidentDJ = "resident-dj"
	RoleDJ         = "dj"
	RoleUser       = "user"
)

// Rights a role may grant.
const (
	RightSkip       = "skip"
	RightQueueOrder = "queue-order"
	RightKick       = "kick"
	RightBan        = "ban"
	RightMute       = "mute"
	RightSetDJ      = "set-dj"
	RightLockQueue  = "lock-queue"
	RightDeleteChat = "delete-chat"
	RightSetRoles   = "set-roles"
	RightUpdateRoom = "update-room"
)

// Role is an entry of the static role/rights table. Instances handed out by
// the table are copies; the table itself is never mutated after load.
type Role struct {
	ID     string
	Type   string
	Label  string
	Rights map[string]struct{}
}

// Is reports whether the role is of the given type.
func (r *Role) Is(roleType string) bool {
	return r.Type == roleType
}

// HasRight reports whether the role grants the given right.
func (r *Role) HasRight(right string) bool {
	_, ok := r.Rights[right]
	return ok
}

func rights(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// roleTable is the process-wide role/rights table, keyed by the role ids the
// service uses on the wire. Loaded once, read-only afterwards.
var roleTable = map[string]Role{
	"5615fd84ae6faa0001c78343": {
		ID:    "5615fd84ae6faa0001c78343",
		Type:  RoleCoOwner,
		Label: "Co-Owner",
		Rights: rights(RightSkip, RightQueueOrder, RightKick, RightBan, RightMute,
			RightSetDJ, RightLockQueue, RightDeleteChat, RightSetRoles, RightUpdateRoom),
	},
	"5615fddfae6faa0001c78344": {
		ID:    "5615fddfae6faa0001c78344",
		Type:  RoleManager,
		Label: "Manager",
		Rights: rights(RightSkip, RightQueueOrder, RightKick, RightBan, RightMute,
			RightSetDJ, RightLockQueue, RightDeleteChat, RightSetRoles),
	},
	"52d1ce33c38a06510c000001": {
		ID:    "52d1ce33c38a06510c000001",
		Type:  RoleMod,
		Label: "Moderator",
		Rights: rights(RightSkip, RightQueueOrder, RightKick, RightBan, RightMute,
			RightSetDJ, RightLockQueue, RightDeleteChat),
	},
	"5615fe1ee596154fc2000001": {
		ID:     "5615fe1ee596154fc2000001",
		Type:   RoleVIP,
		Label:  "VIP",
		Rights: rights(RightSkip),
	},
	"5615feb8e596154fc2000002": {
		ID:     "5615feb8e596154fc2000002",
		Type:   RoleResidentDJ,
		Label:  "Resident DJ",
		Rights: rights(RightQueueOrder),
	},
	"564435423f6ba174d2000001": {
		ID:     "564435423f6ba174d2000001",
		Type:   RoleDJ,
		Label:  "DJ",
		Rights: rights(),
	},
}

// defaultRole is what unrecognized or absent role identifiers resolve to.
var defaultRole = Role{Type: RoleUser, Label: "User", Rights: rights()}

// roleTableByType indexes the same entries by role type name.
var roleTableByType = func() map[string]Role {
	byType := make(map[string]Role, len(roleTable))
	for _, r := range roleTable {
		byType[r.Type] = r
	}
	return byType
}()

// RoleByID resolves a role identifier against the static table, falling back
// to the default user role.
func RoleByID(id string) *Role {
	if r, ok := roleTable[id]; ok {
		return &r
	}
	return newDefaultRole()
}

// RoleByType resolves a role type name against the static table.
func RoleByType(roleType string) *Role {
	if r, ok := roleTableByType[roleType]; ok {
		return &r
	}
	return newDefaultRole()
}

func newDefaultRole() *Role {
	r := defaultRole
	return &r
}

// newRoleFromPayload accepts the shapes the service uses for a role field: a
// raw role sub-object, a bare identifier string, or nil.
func newRoleFromPayload(v any) *Role {
	switch t := v.(type) {
	case string:
		return RoleByID(t)
	case map[string]any:
		if id := payloadString(t, "_id", "id"); id != "" {
			return RoleByID(id)
		}
		if typ := payloadString(t, "type"); typ != "" {
			return RoleByType(typ)
		}
	}
	return newDefaultRole()
}
