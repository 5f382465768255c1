package chat

// Client is a connected user's session handle as seen by the core layer.
// The transport layer drains Events into the socket.
type Client struct {
	UserID string
	Events chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(userID string) *Client {
	return &Client{
		UserID: userID,
		Events: make(chan *Event, 32),
	}
}
