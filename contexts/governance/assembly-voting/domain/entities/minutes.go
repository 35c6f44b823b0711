package entities

// Attendee is a member who cast at least one ballot in the assembly.
type Attendee struct {
	MemberID       string
	Name           string
	Category       MemberCategory
	ProxiesHeld    []string
	BallotsInItems int
}

// MinutesDocument is the rendered output of the minutes generator.
type MinutesDocument struct {
	AssemblyID  string
	FileName    string
	ContentType string
	Content     []byte
}
