package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBunkerPubKey = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"

func newTestNsec(t *testing.T) (nsec, pk string) {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	nsec, err := nip19.EncodePrivateKey(sk)
	require.NoError(t, err)
	pk, err = nostr.GetPublicKey(sk)
	require.NoError(t, err)
	return nsec, pk
}

// relayRecorder is a fake relay fan-out that accepts on the listed relays.
type relayRecorder struct {
	mu     sync.Mutex
	accept map[string]bool
	seen   map[string]nostr.Event
}

func newRelayRecorder(accept ...string) *relayRecorder {
	r := &relayRecorder{accept: map[string]bool{}, seen: map[string]nostr.Event{}}
	for _, a := range accept {
		r.accept[a] = true
	}
	return r
}

func (r *relayRecorder) send(_ context.Context, relay string, ev nostr.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[relay] = ev
	if r.accept[relay] {
		return nil
	}
	return errors.New("blocked")
}

type fakeBunker struct {
	keySigner
	closed int
	dialed []string
}

func (f *fakeBunker) dial(_ context.Context, clientSecret, uri string) (nostrSigner, func(), error) {
	f.dialed = append(f.dialed, clientSecret, uri)
	return f.keySigner, func() { f.closed++ }, nil
}

func TestNostrPublisher_Publish_Nsec(t *testing.T) {
	nsec, pk := newTestNsec(t)
	relays := newRelayRecorder("wss://relay.one")

	p := NewNostrPublisher(nil)
	p.send = relays.send
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	raw := rawJSON(t, NostrCredentials{Nsec: nsec, Relays: "wss://relay.one\nhttps://not-a-relay\n  wss://relay.two  \n"})
	res := p.Publish(context.Background(), Post{Text: "gm"}, raw)
	require.True(t, res.Success, res.Error)
	assert.True(t, strings.HasPrefix(res.PostID, "note1"))
	assert.Equal(t, "https://njump.me/"+res.PostID, res.PostURL)

	require.Len(t, relays.seen, 2)
	ev := relays.seen["wss://relay.one"]
	assert.Equal(t, nostr.KindTextNote, ev.Kind)
	assert.Equal(t, "gm", ev.Content)
	assert.Equal(t, pk, ev.PubKey)
	assert.Equal(t, nostr.Timestamp(1700000000), ev.CreatedAt)
	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)

	_, note, err := nip19.Decode(res.PostID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, note)
}

func TestNostrPublisher_Publish_NoRelayAccepts(t *testing.T) {
	nsec, _ := newTestNsec(t)
	relays := newRelayRecorder()

	p := NewNostrPublisher(nil)
	p.send = relays.send

	res := p.Publish(context.Background(), Post{Text: "gm"}, rawJSON(t, NostrCredentials{Nsec: nsec}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no relay accepted the event")
	assert.Len(t, relays.seen, len(defaultNostrRelays))
}

func TestNostrPublisher_Publish_InvalidNsec(t *testing.T) {
	p := NewNostrPublisher(nil)
	p.send = newRelayRecorder("wss://relay.damus.io").send

	_, pk := newTestNsec(t)
	npub, err := nip19.EncodePublicKey(pk)
	require.NoError(t, err)

	res := p.Publish(context.Background(), Post{Text: "gm"}, rawJSON(t, NostrCredentials{Nsec: npub}))
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid nsec format", res.Error)
}

func TestNostrPublisher_Publish_WithMedia(t *testing.T) {
	_, hc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nostr.build", r.Header.Get(originalHostHeader))
		_, hdr, err := r.FormFile("files")
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   []map[string]string{{"url": "https://image.nostr.build/" + hdr.Filename}},
		})
	})
	nsec, _ := newTestNsec(t)
	relays := newRelayRecorder("wss://relay.damus.io")

	p := NewNostrPublisher(hc)
	p.send = relays.send

	post := Post{Text: "pics", Media: []string{writeMediaFile(t, "a.png", pngHeader), writeMediaFile(t, "b.png", pngHeader)}}
	res := p.Publish(context.Background(), post, rawJSON(t, NostrCredentials{Nsec: nsec}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "pics\n\nhttps://image.nostr.build/a.png\nhttps://image.nostr.build/b.png", relays.seen["wss://relay.damus.io"].Content)
}

func TestNostrPublisher_Publish_UploadFails(t *testing.T) {
	_, hc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})
	nsec, _ := newTestNsec(t)

	p := NewNostrPublisher(hc)
	p.send = newRelayRecorder("wss://relay.damus.io").send

	post := Post{Text: "pics", Media: []string{writeMediaFile(t, "a.png", pngHeader)}}
	res := p.Publish(context.Background(), post, rawJSON(t, NostrCredentials{Nsec: nsec}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Image upload failed: nostr.build upload failed: 413")
}

func TestNostrPublisher_Publish_Bunker(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	bunker := &fakeBunker{keySigner: keySigner{sk: sk}}
	relays := newRelayRecorder("wss://bunker.relay")

	p := NewNostrPublisher(nil)
	p.dial = bunker.dial
	p.send = relays.send

	uri := "bunker://" + testBunkerPubKey + "?relay=wss://bunker.relay&secret=s"
	raw := rawJSON(t, NostrCredentials{BunkerURI: uri, ClientSecret: "cs", Relays: "wss://ignored.relay"})
	res := p.Publish(context.Background(), Post{Text: "remote"}, raw)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, []string{"cs", uri}, bunker.dialed)
	assert.Equal(t, 1, bunker.closed)
	assert.Len(t, relays.seen, 1)
	assert.Contains(t, relays.seen, "wss://bunker.relay")
}

func TestNostrPublisher_Publish_BunkerClosesOnFailure(t *testing.T) {
	bunker := &fakeBunker{keySigner: keySigner{sk: nostr.GeneratePrivateKey()}}

	p := NewNostrPublisher(nil)
	p.dial = bunker.dial
	p.send = newRelayRecorder().send

	uri := "bunker://" + testBunkerPubKey + "?relay=wss://bunker.relay"
	res := p.Publish(context.Background(), Post{Text: "remote"}, rawJSON(t, NostrCredentials{BunkerURI: uri, ClientSecret: "cs"}))
	assert.False(t, res.Success)
	assert.Equal(t, 1, bunker.closed)
}

func TestNostrPublisher_Bunker_MissingClientSecret(t *testing.T) {
	p := NewNostrPublisher(nil)
	p.dial = func(context.Context, string, string) (nostrSigner, func(), error) {
		t.Fatal("dial must not be called")
		return nil, nil, nil
	}

	raw := rawJSON(t, NostrCredentials{BunkerURI: "bunker://" + testBunkerPubKey})
	res := p.Publish(context.Background(), Post{Text: "x"}, raw)
	assert.False(t, res.Success)
	assert.Equal(t, "Missing bunker client secret (disconnect and connect again)", res.Error)

	tr := p.TestConnection(context.Background(), raw)
	assert.False(t, tr.Success)
}

func TestNostrPublisher_TestConnection(t *testing.T) {
	nsec, pk := newTestNsec(t)
	npub, err := nip19.EncodePublicKey(pk)
	require.NoError(t, err)

	p := NewNostrPublisher(nil)
	res := p.TestConnection(context.Background(), rawJSON(t, NostrCredentials{Nsec: nsec}))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, npub, res.DisplayName)

	sk := nostr.GeneratePrivateKey()
	bunkerPK, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	bunker := &fakeBunker{keySigner: keySigner{sk: sk}}
	p.dial = bunker.dial

	res = p.TestConnection(context.Background(), rawJSON(t, NostrCredentials{BunkerURI: "bunker://" + testBunkerPubKey, ClientSecret: "cs"}))
	require.True(t, res.Success, res.Error)
	want, _ := nip19.EncodePublicKey(bunkerPK)
	assert.Equal(t, want, res.DisplayName)
	assert.Equal(t, 1, bunker.closed)
}

func TestNostrPublisher_PrepareCredentials(t *testing.T) {
	p := NewNostrPublisher(nil)

	raw, name, err := p.PrepareCredentials(rawJSON(t, NostrCredentials{BunkerURI: " bunker://" + testBunkerPubKey + "?relay=wss://r "}))
	require.NoError(t, err)
	assert.Equal(t, "Nostr (bunker)", name)
	var c NostrCredentials
	require.NoError(t, json.Unmarshal(raw, &c))
	assert.Len(t, c.ClientSecret, 64)
	assert.Equal(t, "bunker://"+testBunkerPubKey+"?relay=wss://r", c.BunkerURI)

	raw2, _, err := p.PrepareCredentials(raw)
	require.NoError(t, err)
	var c2 NostrCredentials
	require.NoError(t, json.Unmarshal(raw2, &c2))
	assert.Equal(t, c.ClientSecret, c2.ClientSecret)

	nsec, pk := newTestNsec(t)
	_, name, err = p.PrepareCredentials(rawJSON(t, NostrCredentials{Nsec: nsec}))
	require.NoError(t, err)
	npub, _ := nip19.EncodePublicKey(pk)
	assert.Equal(t, npub, name)

	_, _, err = p.PrepareCredentials(rawJSON(t, NostrCredentials{BunkerURI: "https://example.com"}))
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, _, err = p.PrepareCredentials(rawJSON(t, NostrCredentials{Nsec: "nsec1garbage"}))
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestParseNostrBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"tag list", `[["url","https://i.nostr.build/a.png"],["m","image/png"]]`, "https://i.nostr.build/a.png", false},
		{"wrapped tags", `{"data":[["m","image/png"],["url","https://i.nostr.build/b.png"]]}`, "https://i.nostr.build/b.png", false},
		{"wrapped objects", `{"status":"success","data":[{"url":"https://i.nostr.build/c.png"}]}`, "https://i.nostr.build/c.png", false},
		{"no url", `{"data":[["m","image/png"]]}`, "", true},
		{"not json", `<html>`, "", true},
		{"no data", `{"status":"error"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNostrBuildURL([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNostrRelays(t *testing.T) {
	assert.Equal(t, defaultNostrRelays, nostrRelays(""))
	assert.Equal(t, defaultNostrRelays, nostrRelays("http://x\nfoo"))
	assert.Equal(t, []string{"wss://a", "ws://b"}, nostrRelays("wss://a\r\n ws://b \n\n"))
}

func TestParseBunkerURI(t *testing.T) {
	bp, err := parseBunkerURI("bunker://" + testBunkerPubKey + "?relay=wss://r1&relay=wss://r2&relay=ftp://x&secret=abc")
	require.NoError(t, err)
	assert.Equal(t, testBunkerPubKey, bp.remotePubKey)
	assert.Equal(t, []string{"wss://r1", "wss://r2"}, bp.relays)

	for _, bad := range []string{"", "nostrconnect://" + testBunkerPubKey, "bunker://nothex", "bunker://"} {
		_, err := parseBunkerURI(bad)
		assert.Error(t, err, bad)
	}
}
