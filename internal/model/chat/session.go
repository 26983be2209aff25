package chat

// Session binds a conversation to its owning user. The id is supplied by the
// client or allocated by the server on the first message, and stays stable
// for the lifetime of the conversation.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}
