package messaging

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const twimlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// ValidateTwilioSignature checks X-Twilio-Signature against the request's
// form parameters and the public webhook URL.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SignRequest returns the signature Twilio would send for the given URL and form.
func SignRequest(authToken, webhookURL string, form url.Values) string {
	return computeSignature(buildSignaturePayload(webhookURL, form), authToken)
}

func buildSignaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// InboundSMS is the subset of a Twilio messaging webhook the reply flow reads.
type InboundSMS struct {
	MessageSid   string
	AccountSid   string
	From         string
	To           string
	Body         string
	ErrorCode    string
	ErrorMessage string
}

// ParseInboundSMS parses a Twilio form-encoded webhook.
func ParseInboundSMS(r *http.Request) (*InboundSMS, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: parse twilio form: %w", err)
	}
	return &InboundSMS{
		MessageSid:   r.FormValue("MessageSid"),
		AccountSid:   r.FormValue("AccountSid"),
		From:         strings.TrimSpace(r.FormValue("From")),
		To:           strings.TrimSpace(r.FormValue("To")),
		Body:         r.FormValue("Body"),
		ErrorCode:    r.FormValue("ErrorCode"),
		ErrorMessage: r.FormValue("ErrorMessage"),
	}, nil
}

// BuildAbsoluteURL reconstructs the public URL of r, honoring proxy headers.
func BuildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

// TwiML renders a messaging response. An empty message yields an empty
// <Response/> so Twilio sends nothing back.
func TwiML(message string) string {
	if message == "" {
		return twimlHeader + "<Response></Response>"
	}
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(message))
	return twimlHeader + "<Response><Message>" + buf.String() + "</Message></Response>"
}

// WriteTwiML writes a TwiML body with status 200 and a text/xml content type.
func WriteTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(TwiML(message)))
}
