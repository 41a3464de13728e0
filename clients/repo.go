package clients

// Repo stores registered clients. Get returns ErrNotFound for unknown ids.
type Repo interface {
	Upsert(clientData *Client) error
	Delete(clientID string) error
	Get(clientID string) (*Client, error)
	List(offset, limit int) ([]*Client, error)
}
