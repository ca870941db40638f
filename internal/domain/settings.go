package domain

// SettingsKey is the fixed key of the single settings record.
const SettingsKey = "default"

// Settings is the single mutable configuration document.
// Read before almost every interaction, written rarely.
type Settings struct {
	ID string `json:"id"`

	// Online gates all non-admin interactions when false.
	Online bool `json:"online"`

	// RequiredChannels lists channel identifiers a user must be a member
	// of before using the watcher. Order is irrelevant.
	RequiredChannels []string `json:"required_channels"`
}

func (s Settings) Key() string { return s.ID }

// DefaultSettings is the document written when no settings record exists.
func DefaultSettings() Settings {
	return Settings{ID: SettingsKey, Online: true}
}

// SettingsPatch mutates the settings document. Nil fields are untouched.
type SettingsPatch struct {
	Online           *bool
	RequiredChannels *[]string
}

func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Online != nil {
		s.Online = *p.Online
	}
	if p.RequiredChannels != nil {
		s.RequiredChannels = *p.RequiredChannels
	}
	return s
}
