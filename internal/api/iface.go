package api

import "context"

// PrefaceAPI is the client surface used by the CLI and TUI.
// *Client satisfies this interface. Tests use mock implementations.
type PrefaceAPI interface {
	GenerateStream(ctx context.Context, openid, content string, onChunk func([]byte)) error
	History(openid string, page int) (*RecordList, error)
	Favorites(openid string, page int) (*RecordList, error)
	SetFavorite(openid, promptID, action string) error
}

var _ PrefaceAPI = (*Client)(nil)
