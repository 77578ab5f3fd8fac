package notification

// Filter narrows recipients to those that should receive a push.
//
// Stages run in order: muted recipients are dropped, then recipients
// without a token, then recipients whose preference column is explicitly
// false. When a stage empties the list the corresponding reason is
// returned with a nil slice. An empty input yields ReasonNoRecipients.
func Filter(recipients []Recipient, column string) ([]Recipient, SkipReason) {
	if len(recipients) == 0 {
		return nil, ReasonNoRecipients
	}

	unmuted := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		if !r.Muted {
			unmuted = append(unmuted, r)
		}
	}
	if len(unmuted) == 0 {
		return nil, ReasonAllMuted
	}

	reachable := make([]Recipient, 0, len(unmuted))
	for _, r := range unmuted {
		if r.Profile.HasPushToken() {
			reachable = append(reachable, r)
		}
	}
	if len(reachable) == 0 {
		return nil, ReasonNoPushTokens
	}

	allowed := make([]Recipient, 0, len(reachable))
	for _, r := range reachable {
		if r.Profile.Allows(column) {
			allowed = append(allowed, r)
		}
	}
	if len(allowed) == 0 {
		return nil, ReasonAllPreferenceDisabled
	}

	return allowed, ""
}

// Unmuted returns the user ids of participants that have not muted the
// conversation.
func Unmuted(participants []Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		if !p.IsMuted {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// Tokens extracts push tokens in recipient order.
func Tokens(recipients []Recipient) []string {
	tokens := make([]string, 0, len(recipients))
	for _, r := range recipients {
		tokens = append(tokens, r.Profile.PushToken)
	}
	return tokens
}
