package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/go-resty/resty/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/nbd-wtf/go-nostr/nip46"
)

const (
	nostrBuildUpload  = "https://nostr.build/api/v2/upload/files"
	nostrRelayTimeout = 15 * time.Second
	nostrBunkerName   = "Nostr (bunker)"
)

var defaultNostrRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
}

// nostrSigner signs events either with a local key or through a NIP-46
// remote signer.
type nostrSigner interface {
	GetPublicKey(ctx context.Context) (string, error)
	SignEvent(ctx context.Context, ev *nostr.Event) error
}

type keySigner struct {
	sk string
}

func (k keySigner) GetPublicKey(context.Context) (string, error) {
	return nostr.GetPublicKey(k.sk)
}

func (k keySigner) SignEvent(_ context.Context, ev *nostr.Event) error {
	return ev.Sign(k.sk)
}

// bunkerDialer connects to a remote signer. The returned func tears the
// session down and must always be called.
type bunkerDialer func(ctx context.Context, clientSecret, uri string) (nostrSigner, func(), error)

// relayPublisher delivers one signed event to one relay.
type relayPublisher func(ctx context.Context, relayURL string, ev nostr.Event) error

func dialBunker(ctx context.Context, clientSecret, uri string) (nostrSigner, func(), error) {
	pctx, cancel := context.WithCancel(ctx)
	pool := nostr.NewSimplePool(pctx)
	bc, err := nip46.ConnectBunker(pctx, clientSecret, uri, pool, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return bc, cancel, nil
}

func publishToRelay(ctx context.Context, relayURL string, ev nostr.Event) error {
	r, err := nostr.RelayConnect(ctx, relayURL)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Publish(ctx, ev)
}

// NostrPublisher signs kind-1 notes and broadcasts them to relays. Media is
// hosted on nostr.build and appended to the note as URLs.
type NostrPublisher struct {
	rc           *resty.Client
	uploadURL    string
	relayTimeout time.Duration
	dial         bunkerDialer
	send         relayPublisher
	now          func() time.Time
}

func NewNostrPublisher(hc *http.Client) *NostrPublisher {
	return &NostrPublisher{
		rc:           resty.NewWithClient(hc),
		uploadURL:    nostrBuildUpload,
		relayTimeout: nostrRelayTimeout,
		dial:         dialBunker,
		send:         publishToRelay,
		now:          time.Now,
	}
}

func (p *NostrPublisher) ValidateCredentials(raw json.RawMessage) error {
	var c NostrCredentials
	return decodeCredentials(raw, &c)
}

// PrepareCredentials generates the bunker client secret on first connect and
// suggests a display name: the npub for nsec connections, a fixed label for
// bunker ones.
func (p *NostrPublisher) PrepareCredentials(raw json.RawMessage) (json.RawMessage, string, error) {
	var c NostrCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return nil, "", err
	}

	var name string
	if c.UsesBunker() {
		c.BunkerURI = strings.TrimSpace(c.BunkerURI)
		if _, err := parseBunkerURI(c.BunkerURI); err != nil {
			return nil, "", fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		if c.ClientSecret == "" {
			secret, err := common.MakeRandHexString(32)
			if err != nil {
				return nil, "", err
			}
			c.ClientSecret = secret
		}
		name = nostrBunkerName
	} else {
		c.Nsec = strings.TrimSpace(c.Nsec)
		npub, err := npubFromNsec(c.Nsec)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		name = npub
	}

	out, err := json.Marshal(c)
	if err != nil {
		return nil, "", err
	}
	return out, name, nil
}

func (p *NostrPublisher) TestConnection(ctx context.Context, raw json.RawMessage) TestResult {
	var c NostrCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return testFailed(err)
	}

	if !c.UsesBunker() {
		npub, err := npubFromNsec(c.Nsec)
		if err != nil {
			return testFailed(err)
		}
		return TestResult{Success: true, DisplayName: npub}
	}

	var npub string
	err := p.withBunker(ctx, c, func(s nostrSigner, _ []string) error {
		pk, err := s.GetPublicKey(ctx)
		if err != nil {
			return err
		}
		npub, err = nip19.EncodePublicKey(pk)
		return err
	})
	if err != nil {
		return testFailed(err)
	}
	return TestResult{Success: true, DisplayName: npub}
}

func (p *NostrPublisher) Publish(ctx context.Context, post Post, raw json.RawMessage) PublishResult {
	var c NostrCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return publishFailed("%v", err)
	}

	content := post.Text
	if media := limitMedia(post.Media, 4); len(media) > 0 {
		urls := make([]string, 0, len(media))
		for _, path := range media {
			u, err := p.uploadMedia(ctx, path)
			if err != nil {
				return publishFailed("Image upload failed: %v", err)
			}
			urls = append(urls, u)
		}
		if content != "" {
			content += "\n\n" + strings.Join(urls, "\n")
		} else {
			content = strings.Join(urls, "\n")
		}
	}

	ev := nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Timestamp(p.now().Unix()),
		Tags:      nostr.Tags{},
		Content:   content,
	}

	sign := func(s nostrSigner, relays []string) error {
		if err := s.SignEvent(ctx, &ev); err != nil {
			return fmt.Errorf("sign event: %w", err)
		}
		return p.broadcast(ctx, relays, ev)
	}

	var err error
	if c.UsesBunker() {
		err = p.withBunker(ctx, c, sign)
	} else {
		var sk string
		if sk, err = decodeNsec(c.Nsec); err == nil {
			err = sign(keySigner{sk: sk}, nostrRelays(c.Relays))
		}
	}
	if err != nil {
		return publishFailed("%v", err)
	}

	note, err := nip19.EncodeNote(ev.ID)
	if err != nil {
		return publishFailed("encode note id: %v", err)
	}
	return published(note, "https://njump.me/"+note)
}

// withBunker connects to the remote signer, runs op and tears the session
// down on every path. Relays named in the bunker URI take precedence over the
// configured ones.
func (p *NostrPublisher) withBunker(ctx context.Context, c NostrCredentials, op func(nostrSigner, []string) error) error {
	if c.ClientSecret == "" {
		return errors.New("Missing bunker client secret (disconnect and connect again)")
	}
	uri := strings.TrimSpace(c.BunkerURI)
	bp, err := parseBunkerURI(uri)
	if err != nil {
		return err
	}
	relays := bp.relays
	if len(relays) == 0 {
		relays = nostrRelays(c.Relays)
	}

	s, closeFn, err := p.dial(ctx, c.ClientSecret, uri)
	if err != nil {
		return fmt.Errorf("bunker connect: %w", err)
	}
	defer closeFn()
	return op(s, relays)
}

// broadcast sends ev to every relay concurrently and succeeds when at least
// one relay accepted it.
func (p *NostrPublisher) broadcast(ctx context.Context, relays []string, ev nostr.Event) error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
		ok   bool
	)
	for _, relay := range relays {
		wg.Add(1)
		go func(relay string) {
			defer wg.Done()
			rctx, cancel := context.WithTimeout(ctx, p.relayTimeout)
			defer cancel()
			err := p.send(rctx, relay, ev)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", relay, err))
				return
			}
			ok = true
		}(relay)
	}
	wg.Wait()

	if ok {
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no relays configured")
	}
	return fmt.Errorf("no relay accepted the event: %w", errors.Join(errs...))
}

func (p *NostrPublisher) uploadMedia(ctx context.Context, path string) (string, error) {
	f, err := loadMedia(path)
	if err != nil {
		return "", err
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetMultipartField("files", f.Name, f.MIMEType, bytes.NewReader(f.Data)).
		Post(p.uploadURL)
	if err := check("nostr.build upload failed", resp, err); err != nil {
		return "", err
	}
	return parseNostrBuildURL(resp.Body())
}

// parseNostrBuildURL accepts either a bare list of NIP-94 tags or an object
// whose data field lists tags or file objects.
func parseNostrBuildURL(body []byte) (string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Data == nil {
			return "", errors.New("invalid nostr.build response")
		}
		items = wrapped.Data
	}
	for _, it := range items {
		var tag []string
		if json.Unmarshal(it, &tag) == nil && len(tag) >= 2 && tag[0] == "url" {
			return tag[1], nil
		}
		var obj struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(it, &obj) == nil && obj.URL != "" {
			return obj.URL, nil
		}
	}
	return "", errors.New("no URL in nostr.build response")
}

// nostrRelays splits the newline separated relay list, keeping ws(s) URLs.
// An empty result falls back to the default relays.
func nostrRelays(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "wss://") || strings.HasPrefix(s, "ws://") {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultNostrRelays...)
	}
	return out
}

type bunkerParams struct {
	remotePubKey string
	relays       []string
}

func parseBunkerURI(uri string) (*bunkerParams, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "bunker" {
		return nil, errors.New("Invalid Bunker URI")
	}
	pk := u.Host
	if pk == "" {
		pk = strings.TrimPrefix(u.Opaque, "//")
	}
	if !nostr.IsValidPublicKey(pk) {
		return nil, errors.New("Invalid Bunker URI")
	}
	bp := &bunkerParams{remotePubKey: pk}
	for _, r := range u.Query()["relay"] {
		if strings.HasPrefix(r, "wss://") || strings.HasPrefix(r, "ws://") {
			bp.relays = append(bp.relays, r)
		}
	}
	return bp, nil
}

func decodeNsec(nsec string) (string, error) {
	prefix, value, err := nip19.Decode(strings.TrimSpace(nsec))
	if err != nil {
		return "", fmt.Errorf("Invalid nsec: %w", err)
	}
	sk, ok := value.(string)
	if prefix != "nsec" || !ok {
		return "", errors.New("Invalid nsec format")
	}
	return sk, nil
}

func npubFromNsec(nsec string) (string, error) {
	sk, err := decodeNsec(nsec)
	if err != nil {
		return "", err
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return "", err
	}
	return nip19.EncodePublicKey(pk)
}
