package core

import (
	"strings"
	"time"
)

// ConsumerCredentials identify this application to the remote service.
type ConsumerCredentials struct {
	Key    string
	Secret string
}

// RequestToken is the temporary credential of an in-flight authorization
// handshake. It is consumed exactly once.
type RequestToken struct {
	Token       string
	TokenSecret string
	UserID      string
	CreatedAt   time.Time
}

// AccessToken is a long-lived credential authorizing calls on a user's behalf.
type AccessToken struct {
	Token             string
	TokenSecret       string
	ExternalAccountID string
	UserID            string
}

func (t AccessToken) Valid() bool {
	return strings.TrimSpace(t.Token) != "" && strings.TrimSpace(t.TokenSecret) != ""
}

// UserServiceLink associates a local user with an access token for one remote
// account.
type UserServiceLink struct {
	ID                string
	UserID            string
	ExternalAccountID string
	AccessToken       AccessToken
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type DirectiveKind string

const (
	DirectiveRead    DirectiveKind = "read"
	DirectivePublish DirectiveKind = "publish"
)

type ReadPayload struct {
	AccountIdentifier string
	PostID            string
}

// AccountName returns the account identifier without the service host suffix.
func (p ReadPayload) AccountName(suffix string) string {
	name := strings.TrimSpace(p.AccountIdentifier)
	suffix = strings.TrimSpace(suffix)
	if suffix != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix)) {
		trimmed := name[:len(name)-len(suffix)]
		if trimmed != "" {
			return trimmed
		}
	}
	return name
}

type PublishPayload struct {
	BodyText string
}

// Directive is a command token recognized in a message. Position is the byte
// offset of the token in the original text.
type Directive struct {
	Kind     DirectiveKind
	Position int
	Read     *ReadPayload
	Publish  *PublishPayload
}

type ScanResult struct {
	Text       string
	Directives []Directive
}

func (r ScanResult) ReadDirectives() []Directive {
	out := make([]Directive, 0, len(r.Directives))
	for _, directive := range r.Directives {
		if directive.Kind == DirectiveRead && directive.Read != nil {
			out = append(out, directive)
		}
	}
	return out
}

func (r ScanResult) PublishDirective() (Directive, bool) {
	for _, directive := range r.Directives {
		if directive.Kind == DirectivePublish && directive.Publish != nil {
			return directive, true
		}
	}
	return Directive{}, false
}

// ResolvedContent holds the URLs obtained for one read directive, in
// remote order.
type ResolvedContent struct {
	Directive Directive
	URLs      []string
}

type ProcessResult struct {
	Text      string
	Resolved  []ResolvedContent
	Published bool
}

type BeginHandshakeRequest struct {
	UserID      string
	CallbackURL string
}

type HandshakeStart struct {
	AuthorizationURL string
	Token            RequestToken
}

type BeginLinkRequest struct {
	UserID      string
	CallbackURL string
}

type BeginLinkResponse struct {
	AuthorizationURL string
	RequestToken     string
}

type CompleteLinkRequest struct {
	RequestToken string
	Verifier     string
}

type CompleteLinkResponse struct {
	Link UserServiceLink
}

type ProcessTextRequest struct {
	UserID string
	Text   string
}

// SignRequest describes an outgoing call before OAuth parameters are added.
type SignRequest struct {
	Method      string
	URL         string
	Params      map[string]string
	Token       string
	TokenSecret string
	Extra       map[string]string
}

// SignedRequest is the transport-ready result of signing. GET parameters are
// carried in Query and POST parameters in Form. OAuth parameters go to the
// Authorization header or to Query depending on the signature transport.
type SignedRequest struct {
	Method  string
	URL     string
	Query   map[string]string
	Form    map[string]string
	Headers map[string]string
}

func cloneStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

// CloneStringMap returns a shallow copy that is never nil.
func CloneStringMap(in map[string]string) map[string]string {
	return cloneStringMap(in)
}
