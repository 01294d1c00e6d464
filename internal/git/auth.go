package git

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// tokenAuth returns HTTP basic auth carrying token, or nil for anonymous clones.
func tokenAuth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "token", // GitHub/GitLab accept any username with a token
		Password: token,
	}
}
