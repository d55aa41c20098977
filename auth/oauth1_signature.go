package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-crosspost/core"
)

const (
	SignatureMethodHMACSHA1 = "HMAC-SHA1"
	OAuthVersion            = "1.0"
)

const upperHex = "0123456789ABCDEF"

// SignatureEngine computes HMAC-SHA1 signatures over normalized request
// parameters. It holds no state.
type SignatureEngine struct{}

// Sign returns the base64 HMAC-SHA1 signature for the request. tokenSecret is
// empty on the request token leg.
func (SignatureEngine) Sign(
	method string,
	baseURL string,
	params map[string]string,
	consumerSecret string,
	tokenSecret string,
) (string, error) {
	baseString, err := SignatureBaseString(method, baseURL, params)
	if err != nil {
		return "", err
	}
	key, err := SigningKey(consumerSecret, tokenSecret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha1.New, []byte(key))
	_, _ = mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func SigningKey(consumerSecret string, tokenSecret string) (string, error) {
	encodedConsumer, err := PercentEncode(consumerSecret)
	if err != nil {
		return "", err
	}
	encodedToken, err := PercentEncode(tokenSecret)
	if err != nil {
		return "", err
	}
	return encodedConsumer + "&" + encodedToken, nil
}

// SignatureBaseString joins the uppercased method, the encoded base URL and
// the encoded normalized parameters with "&".
func SignatureBaseString(method string, baseURL string, params map[string]string) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return "", core.NewBadInputError("auth: http method is required")
	}
	normalizedURL, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	normalizedParams, err := NormalizeParameters(params)
	if err != nil {
		return "", err
	}
	encodedURL, err := PercentEncode(normalizedURL)
	if err != nil {
		return "", err
	}
	encodedParams, err := PercentEncode(normalizedParams)
	if err != nil {
		return "", err
	}
	return method + "&" + encodedURL + "&" + encodedParams, nil
}

// NormalizeParameters encodes every key and value, sorts by encoded key then
// encoded value, and joins the pairs with "&". oauth_signature is excluded.
func NormalizeParameters(params map[string]string) (string, error) {
	type pair struct {
		key   string
		value string
	}
	pairs := make([]pair, 0, len(params))
	for key, value := range params {
		if key == "oauth_signature" {
			continue
		}
		encodedKey, err := PercentEncode(key)
		if err != nil {
			return "", err
		}
		encodedValue, err := PercentEncode(value)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, pair{key: encodedKey, value: encodedValue})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key == pairs[j].key {
			return pairs[i].value < pairs[j].value
		}
		return pairs[i].key < pairs[j].key
	})

	var b strings.Builder
	for i, item := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(item.key)
		b.WriteByte('=')
		b.WriteString(item.value)
	}
	return b.String(), nil
}

// NormalizeBaseURL lowercases scheme and host, drops default ports, and strips
// the query and fragment.
func NormalizeBaseURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", core.NewBadInputError(fmt.Sprintf("auth: invalid base url: %v", err))
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", core.NewBadInputError("auth: base url must use http or https")
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", core.NewBadInputError("auth: base url host is required")
	}
	if port := parsed.Port(); port != "" {
		if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
			host = host + ":" + port
		}
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

// PercentEncode applies RFC 3986 encoding: only ALPHA, DIGIT, "-", ".", "_"
// and "~" pass through; every other byte of the UTF-8 form becomes %XX with
// uppercase hex.
func PercentEncode(value string) (string, error) {
	if !utf8.ValidString(value) {
		return "", core.NewEncodingError("auth: value is not valid utf-8 and cannot be percent-encoded")
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}
	return b.String(), nil
}

// PercentDecode reverses PercentEncode. "+" is kept literally.
func PercentDecode(value string) (string, error) {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(value) {
			return "", core.NewEncodingError("auth: truncated percent-encoding")
		}
		hi, okHi := unhex(value[i+1])
		lo, okLo := unhex(value[i+2])
		if !okHi || !okLo {
			return "", core.NewEncodingError("auth: invalid percent-encoding")
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	decoded := b.String()
	if !utf8.ValidString(decoded) {
		return "", core.NewEncodingError("auth: decoded value is not valid utf-8")
	}
	return decoded, nil
}

// EncodeForm renders params as a sorted, percent-encoded form body.
func EncodeForm(params map[string]string) (string, error) {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		encodedKey, err := PercentEncode(key)
		if err != nil {
			return "", err
		}
		encodedValue, err := PercentEncode(params[key])
		if err != nil {
			return "", err
		}
		parts = append(parts, encodedKey+"="+encodedValue)
	}
	return strings.Join(parts, "&"), nil
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	default:
		return false
	}
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
