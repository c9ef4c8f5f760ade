package domain

// MemberStatus is a user's standing in a Telegram chat as reported by the
// Bot API.
type MemberStatus string

const (
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusMember        MemberStatus = "member"
	MemberStatusRestricted    MemberStatus = "restricted"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

// IsMember reports whether the status counts as having joined the channel.
func (s MemberStatus) IsMember() bool {
	switch s {
	case MemberStatusCreator, MemberStatusAdministrator, MemberStatusMember:
		return true
	}
	return false
}
