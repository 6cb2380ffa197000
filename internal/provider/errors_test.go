package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&FetchError{URL: "u", StatusCode: 503}, KindFetch},
		{&FetchError{URL: "u", Err: &BlockedError{Reason: "age-verify"}}, KindFetch},
		{fmt.Errorf("wrap: %w", &ParseError{Provider: "p", Field: "title"}), KindParse},
		{&NotFoundError{Provider: "p", Resource: "video", Key: "x"}, KindNotFound},
		{&NotRegisteredError{Provider: "x"}, KindNotRegistered},
		{&ConfigurationError{Provider: "p", Setting: "worker_url"}, KindConfiguration},
		{context.DeadlineExceeded, KindFetch},
		{errors.New("boom"), KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Kind(c.err), "%v", c.err)
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "fetch https://a.test: HTTP 404", (&FetchError{URL: "https://a.test", StatusCode: 404}).Error())
	assert.Equal(t, "fetch https://a.test: HTTP 302 location=/verify", (&FetchError{URL: "https://a.test", StatusCode: 302, Location: " /verify "}).Error())
	assert.Contains(t, (&NotFoundError{Provider: "cliprank", Resource: "index", Key: "x-2", Reason: "index 2 out of range (2 items)"}).Error(), "out of range")
	assert.Equal(t, "blocked: cloudflare", (&BlockedError{Reason: "cloudflare"}).Error())

	inner := errors.New("conn reset")
	fe := &FetchError{URL: "u", Err: inner}
	assert.ErrorIs(t, fe, inner)
	assert.True(t, IsRetryable(fe))
	assert.False(t, IsRetryable(&NotFoundError{}))
}
