package antispam

type Action string

const (
	ActionNone Action = ""
	ActionKick Action = "kick"
	ActionMute Action = "mute"
	ActionBan  Action = "ban"
)

// Ladder maps a detector's count to a punishment. The highest threshold
// reached wins, so thresholds are expected to ascend kick < mute < ban.
type Ladder struct {
	Kick int
	Mute int
	Ban  int
}

func (l Ladder) Action(count int) Action {
	switch {
	case l.Ban > 0 && count >= l.Ban:
		return ActionBan
	case l.Mute > 0 && count >= l.Mute:
		return ActionMute
	case l.Kick > 0 && count >= l.Kick:
		return ActionKick
	}
	return ActionNone
}
