package notification

// EventType enumerates the notification kinds the pipeline knows how to phrase.
type EventType string

const (
	EventLike        EventType = "like"
	EventComment     EventType = "comment"
	EventReply       EventType = "reply"
	EventFollow      EventType = "follow"
	EventMention     EventType = "mention"
	EventSave        EventType = "save"
	EventOrder       EventType = "order"
	EventReservation EventType = "reservation"
	EventReview      EventType = "review"
)

// Channels group pushes on the device.
const (
	ChannelSocial       = "social"
	ChannelMessages     = "messages"
	ChannelOrders       = "orders"
	ChannelReservations = "reservations"
	ChannelBusiness     = "business"
	ChannelDigest       = "digest"
)

const fallbackLabel = "sent you a notification"

// EventSpec carries everything the pipeline needs to know about one type.
type EventSpec struct {
	Label            string
	PreferenceColumn string
	Channel          string
}

var eventSpecs = map[EventType]EventSpec{
	EventLike:        {Label: "liked your recipe", PreferenceColumn: "notify_recipe_like", Channel: ChannelSocial},
	EventComment:     {Label: "commented on your recipe", PreferenceColumn: "notify_recipe_comment", Channel: ChannelSocial},
	EventReply:       {Label: "replied to your comment", PreferenceColumn: "notify_comment_reply", Channel: ChannelSocial},
	EventFollow:      {Label: "started following you", PreferenceColumn: "notify_new_follower", Channel: ChannelSocial},
	EventMention:     {Label: "mentioned you", PreferenceColumn: "notify_mention", Channel: ChannelSocial},
	EventSave:        {Label: "saved your recipe", PreferenceColumn: "notify_recipe_save", Channel: ChannelSocial},
	EventOrder:       {Label: "placed a new order", PreferenceColumn: "notify_new_order", Channel: ChannelOrders},
	EventReservation: {Label: "made a reservation", PreferenceColumn: "notify_new_reservation", Channel: ChannelReservations},
	EventReview:      {Label: "left a review", PreferenceColumn: "notify_new_review", Channel: ChannelBusiness},
}

// Spec returns the table entry for t. Unknown types get the generic label,
// no preference column and the social channel.
func (t EventType) Spec() EventSpec {
	if spec, ok := eventSpecs[t]; ok {
		return spec
	}
	return EventSpec{Label: fallbackLabel, Channel: ChannelSocial}
}

// Known reports whether t is one of the declared types.
func (t EventType) Known() bool {
	_, ok := eventSpecs[t]
	return ok
}

// PreferenceColumns lists every profile flag the pipeline reads, in a
// stable order. The store uses it to build its profile projection.
func PreferenceColumns() []string {
	order := []EventType{
		EventLike, EventComment, EventReply, EventFollow, EventMention,
		EventSave, EventOrder, EventReservation, EventReview,
	}
	cols := make([]string, 0, len(order)+1)
	for _, t := range order {
		cols = append(cols, eventSpecs[t].PreferenceColumn)
	}
	return append(cols, DirectMessageColumn)
}
