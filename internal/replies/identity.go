package replies

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mobilephlebotomy/leadrouter/internal/messaging"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
)

// IdentityResolver maps a channel-specific sender to a provider. It returns
// ErrProviderNotFound when nobody matches.
type IdentityResolver interface {
	Resolve(ctx context.Context, sender string) (*providers.Provider, error)
}

// ProviderFinder is the slice of the provider repository identity lookups use.
type ProviderFinder interface {
	FindByPhone(ctx context.Context, variants []string) (*providers.Provider, error)
	FindByEmail(ctx context.Context, addr string) (*providers.Provider, error)
}

// PhoneResolver matches an SMS sender against the provider phone field.
type PhoneResolver struct {
	Finder ProviderFinder
}

func (r PhoneResolver) Resolve(ctx context.Context, sender string) (*providers.Provider, error) {
	variants := messaging.SenderVariants(sender)
	if len(variants) == 0 {
		return nil, ErrProviderNotFound
	}
	return translateNotFound(r.Finder.FindByPhone(ctx, variants))
}

// EmailResolver matches an email sender against the provider email fields.
type EmailResolver struct {
	Finder ProviderFinder
}

func (r EmailResolver) Resolve(ctx context.Context, sender string) (*providers.Provider, error) {
	addr := ExtractEmailAddress(sender)
	if addr == "" {
		return nil, ErrProviderNotFound
	}
	return translateNotFound(r.Finder.FindByEmail(ctx, addr))
}

func translateNotFound(p *providers.Provider, err error) (*providers.Provider, error) {
	if errors.Is(err, providers.ErrProviderNotFound) {
		return nil, ErrProviderNotFound
	}
	return p, err
}

var (
	bracketAddr = regexp.MustCompile(`<(.+?)>`)
	bareAddr    = regexp.MustCompile(`([^\s]+@[^\s]+)`)
)

// ExtractEmailAddress pulls the address out of `"Name" <addr>` or a bare
// address. Anything else is returned trimmed.
func ExtractEmailAddress(from string) string {
	from = strings.TrimSpace(from)
	if m := bracketAddr.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareAddr.FindStringSubmatch(from); m != nil {
		return m[1]
	}
	return from
}
