package messaging

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"313-555-0100", "+13135550100"},
		{"(313) 555-0100", "+13135550100"},
		{"+1 313 555 0100", "+13135550100"},
		{"13135550100", "+13135550100"},
		{"", ""},
		{"   ", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeE164(tc.in), "input %q", tc.in)
	}
}

func TestSenderVariants(t *testing.T) {
	assert.Equal(t, []string{"+13135550100", "3135550100", "13135550100"}, SenderVariants("+13135550100"))
	assert.Equal(t, []string{"3135550100"}, SenderVariants("3135550100"))
	assert.Nil(t, SenderVariants("  "))
}

func TestSamePhone(t *testing.T) {
	assert.True(t, SamePhone("(313) 555-0100", "+13135550100"))
	assert.False(t, SamePhone("313-555-0100", "313-555-0101"))
	assert.False(t, SamePhone("", ""))
}

func TestValidateTwilioSignature(t *testing.T) {
	form := url.Values{}
	form.Set("From", "+13135550100")
	form.Set("Body", "CLAIMED")
	form.Set("MessageSid", "SM123")
	webhookURL := "https://example.com/webhooks/sms-reply"

	newReq := func(sig string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, webhookURL, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if sig != "" {
			req.Header.Set("X-Twilio-Signature", sig)
		}
		return req
	}

	good := SignRequest("secret", webhookURL, form)
	assert.True(t, ValidateTwilioSignature(newReq(good), "secret", webhookURL))
	assert.False(t, ValidateTwilioSignature(newReq(good), "other", webhookURL))
	assert.False(t, ValidateTwilioSignature(newReq(""), "secret", webhookURL))
}

func TestBuildAbsoluteURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms-reply?x=1", nil)
	req.Host = "api.internal"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "mobilephlebotomy.org")
	assert.Equal(t, "https://mobilephlebotomy.org/webhooks/sms-reply?x=1", BuildAbsoluteURL(req))
}

func TestTwiML(t *testing.T) {
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`, TwiML(""))

	var parsed struct {
		Message string `xml:"Message"`
	}
	msg := "Lead updated! Jane <Doe> & co\n\nTip: pause"
	require.NoError(t, xml.Unmarshal([]byte(TwiML(msg)), &parsed))
	assert.Equal(t, msg, parsed.Message)
}

func TestWriteTwiML(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTwiML(rec, "ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Message>ok</Message>")
}

func newTestSender(t *testing.T, handler http.HandlerFunc, opts ...TwilioOption) *TwilioSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]TwilioOption{WithBaseURL(srv.URL)}, opts...)
	s := NewTwilioSender("AC123", "token", "+13135550199", nil, opts...)
	s.backoff = func(int) time.Duration { return 0 }
	return s
}

func TestTwilioSenderSend(t *testing.T) {
	var got url.Values
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})

	require.NoError(t, s.Send(context.Background(), "313-555-0100", "hello"))
	assert.Equal(t, "+13135550100", got.Get("To"))
	assert.Equal(t, "+13135550199", got.Get("From"))
	assert.Equal(t, "hello", got.Get("Body"))
}

func TestTwilioSenderUsesMessagingService(t *testing.T) {
	var got url.Values
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
	}, WithMessagingService("MG1"))

	require.NoError(t, s.Send(context.Background(), "+13135550100", "hello"))
	assert.Equal(t, "MG1", got.Get("MessagingServiceSid"))
	assert.Empty(t, got.Get("From"))
}

func TestTwilioSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	})

	err := s.Send(context.Background(), "+13135550100", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 21211")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTwilioSenderRetriesServerErrors(t *testing.T) {
	var calls int32
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, s.Send(context.Background(), "+13135550100", "hello"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTwilioSenderValidation(t *testing.T) {
	s := NewTwilioSender("", "", "+13135550199", nil)
	assert.Error(t, s.Send(context.Background(), "+13135550100", "hi"))

	s = NewTwilioSender("AC1", "tok", "+13135550199", nil)
	assert.Error(t, s.Send(context.Background(), "", "hi"))
	assert.Error(t, s.Send(context.Background(), "+13135550100", "  "))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(nil).Send(context.Background(), "+13135550100", "hi"))
}
