package auth

import "net/url"

// Action tells the caller what to show for a protected destination.
type Action int

const (
	// ActionWait renders a neutral placeholder while the session settles.
	ActionWait Action = iota
	// ActionRedirect sends the user to the login page.
	ActionRedirect
	// ActionAllow renders the protected content.
	ActionAllow
)

// LoginPath is where anonymous users are sent.
const LoginPath = "/login"

type Decision struct {
	Action Action
	// Redirect is set for ActionRedirect and carries the attempted
	// destination in its "from" parameter.
	Redirect string
}

// Guard decides what to do with a request for dest.
func (s *Session) Guard(dest string) Decision {
	switch s.Status() {
	case StatusAuthenticated:
		return Decision{Action: ActionAllow}
	case StatusAnonymous:
		q := url.Values{}
		if dest != "" {
			q.Set("from", dest)
		}
		redirect := LoginPath
		if len(q) > 0 {
			redirect += "?" + q.Encode()
		}
		return Decision{Action: ActionRedirect, Redirect: redirect}
	default:
		return Decision{Action: ActionWait}
	}
}
