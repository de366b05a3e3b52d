package clients

type Repo interface {
	Get(clientID string) (*Client, error)
	List() []*Client
}
