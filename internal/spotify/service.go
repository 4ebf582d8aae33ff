package spotify

// Service bundles the API client and per-user token source into one catalog
// dependency for the chat pipeline and the play-confirmation poller.
type Service struct {
	*Client
	*TokenSource
}

// NewService creates the combined catalog service.
func NewService(client *Client, tokens *TokenSource) *Service {
	return &Service{Client: client, TokenSource: tokens}
}
